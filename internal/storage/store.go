// Package storage provides the durable blob store behind the board.
//
// The engine treats durability as an eventually-consistent mirror: every call
// here may fail or time out and the realtime path must keep working. When no
// store binding is configured the noop implementation degrades to an empty
// board instead of failing startup.
package storage

import "context"

// Store is the durable blob store contract: opaque bytes under string keys.
type Store interface {
	// Get returns the stored bytes, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// Ping verifies the backing connection.
	Ping(ctx context.Context) error
	// Bound reports whether a real backing store is configured.
	Bound() bool
}

// NoopStore is the stand-in used when no store binding is configured.
// Reads see an absent key, writes succeed silently.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (NoopStore) Put(context.Context, string, []byte, string) error { return nil }

func (NoopStore) Delete(context.Context, string) error { return nil }

func (NoopStore) Ping(context.Context) error { return nil }

func (NoopStore) Bound() bool { return false }
