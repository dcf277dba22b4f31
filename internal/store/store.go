// Package store defines the external KV/sorted-set adapter boundary
// of spec §6.4 (matchmaking queues, session TTLs) and ships the
// mandatory in-memory implementation plus an optional Redis-backed one.
package store

import "context"

// ZMember is one entry of a sorted set, ordered by Score ascending
// (spec §6.4).
type ZMember struct {
	Score  float64
	Member string
}

// Store is the pluggable external store contract. An in-memory
// implementation is mandatory (Memory); a network implementation is
// optional (Redis).
type Store interface {
	SetEx(ctx context.Context, key string, ttlSeconds int, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error

	ZAdd(ctx context.Context, queue string, member ZMember) error
	// ZRange returns members with rank in [start, stop] ordered by
	// ascending score; stop == -1 means "to the end" (spec §6.4).
	ZRange(ctx context.Context, queue string, start, stop int) ([]string, error)
	ZRem(ctx context.Context, queue string, members ...string) error
	ZCard(ctx context.Context, queue string) (int64, error)
}
