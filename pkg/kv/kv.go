// Package kv provides the durable string key-value stores the storefront
// mirrors its session and favorites into.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("kv: store closed")

// Store is an asynchronous string key-value store with no transactions and no
// schema. Remove on an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding connections or file handles.
type Closer interface {
	Close() error
}

// Close releases s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
