package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is the mandatory in-memory Store implementation (spec §6.4).
// It is single-writer via its own mutex, matching spec §5's guidance
// for the default store.
type Memory struct {
	mu sync.Mutex

	values  map[string]memEntry
	sorted  map[string][]ZMember
}

type memEntry struct {
	value    string
	expireAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]memEntry),
		sorted: make(map[string][]ZMember),
	}
}

func (m *Memory) SetEx(_ context.Context, key string, ttlSeconds int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = memEntry{value: value, expireAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.values[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expireAt.IsZero() && time.Now().After(entry.expireAt) {
		delete(m.values, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) ZAdd(_ context.Context, queue string, member ZMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.sorted[queue]
	for i, existing := range members {
		if existing.Member == member.Member {
			members[i].Score = member.Score
			sortMembers(members)
			m.sorted[queue] = members
			return nil
		}
	}
	members = append(members, member)
	sortMembers(members)
	m.sorted[queue] = members
	return nil
}

func (m *Memory) ZRange(_ context.Context, queue string, start, stop int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.sorted[queue]
	n := len(members)
	if n == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}

	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, members[i].Member)
	}
	return out, nil
}

func (m *Memory) ZRem(_ context.Context, queue string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	toRemove := make(map[string]bool, len(members))
	for _, mem := range members {
		toRemove[mem] = true
	}
	kept := m.sorted[queue][:0]
	for _, existing := range m.sorted[queue] {
		if !toRemove[existing.Member] {
			kept = append(kept, existing)
		}
	}
	m.sorted[queue] = kept
	return nil
}

func (m *Memory) ZCard(_ context.Context, queue string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sorted[queue])), nil
}

func sortMembers(members []ZMember) {
	sort.Slice(members, func(i, j int) bool {
		return members[i].Score < members[j].Score
	})
}
