package store

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetExAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SetEx(ctx, "k1", 60, "v1"); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}
	got, ok, err := m.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != "v1" {
		t.Fatalf("Get() = (%q, %v), want (\"v1\", true)", got, ok)
	}
}

func TestMemory_GetExpiresAfterTTL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.mu.Lock()
	m.values["k1"] = memEntry{value: "v1", expireAt: time.Now().Add(-time.Second)}
	m.mu.Unlock()

	_, ok, err := m.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatalf("expected an expired key to report not found")
	}
}

func TestMemory_Del(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.SetEx(ctx, "k1", 60, "v1")
	m.Del(ctx, "k1")

	if _, ok, _ := m.Get(ctx, "k1"); ok {
		t.Fatalf("expected key to be gone after Del")
	}
}

func TestMemory_ZAddOrdersByScore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.ZAdd(ctx, "q", ZMember{Score: 3, Member: "c"})
	m.ZAdd(ctx, "q", ZMember{Score: 1, Member: "a"})
	m.ZAdd(ctx, "q", ZMember{Score: 2, Member: "b"})

	got, err := m.ZRange(ctx, "q", 0, -1)
	if err != nil {
		t.Fatalf("ZRange() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("ZRange() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ZRange()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemory_ZAddUpdatesExistingMemberScore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.ZAdd(ctx, "q", ZMember{Score: 5, Member: "a"})
	m.ZAdd(ctx, "q", ZMember{Score: 1, Member: "a"})

	card, _ := m.ZCard(ctx, "q")
	if card != 1 {
		t.Fatalf("expected re-adding the same member to update in place, got cardinality %d", card)
	}
}

func TestMemory_ZRem(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.ZAdd(ctx, "q", ZMember{Score: 1, Member: "a"})
	m.ZAdd(ctx, "q", ZMember{Score: 2, Member: "b"})

	m.ZRem(ctx, "q", "a")

	got, _ := m.ZRange(ctx, "q", 0, -1)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("ZRange() after ZRem = %v, want [b]", got)
	}
}

func TestMemory_ZCard(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if card, _ := m.ZCard(ctx, "empty"); card != 0 {
		t.Fatalf("expected 0 cardinality for an unknown queue, got %d", card)
	}
	m.ZAdd(ctx, "q", ZMember{Score: 1, Member: "a"})
	if card, _ := m.ZCard(ctx, "q"); card != 1 {
		t.Fatalf("expected cardinality 1, got %d", card)
	}
}

func TestMemory_ZRangeOutOfOrderBounds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.ZAdd(ctx, "q", ZMember{Score: 1, Member: "a"})

	got, _ := m.ZRange(ctx, "q", 5, 10)
	if got != nil {
		t.Fatalf("expected an out-of-range start to return nil, got %v", got)
	}
}
