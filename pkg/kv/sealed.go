package kv

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

// ErrUnsealable is returned when a stored value cannot be opened with the
// configured key, e.g. it was written in plain text or with another key.
var ErrUnsealable = errors.New("kv: value cannot be opened with this key")

// Sealed encrypts values at rest with NaCl secretbox before handing them to
// the wrapped store. Keys are stored in clear.
type Sealed struct {
	inner Store
	key   [32]byte
}

// ParseSealKey decodes a 64-character hex key.
func ParseSealKey(hexKey string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return key, fmt.Errorf("kv: decode seal key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("kv: seal key must be %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// NewSealed wraps inner.
func NewSealed(inner Store, key [32]byte) *Sealed {
	return &Sealed{inner: inner, key: key}
}

func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	value, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}
	plain, err := s.open(value)
	if err != nil {
		return "", false, fmt.Errorf("kv: open %q: %w", key, err)
	}
	return plain, true, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Close closes the wrapped store.
func (s *Sealed) Close() error {
	return Close(s.inner)
}

func (s *Sealed) seal(value string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("kv: generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

func (s *Sealed) open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return "", ErrUnsealable
	}
	box, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", ErrUnsealable
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealable
	}
	return string(plain), nil
}
