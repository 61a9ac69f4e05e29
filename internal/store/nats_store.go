package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSSettings configures JetStream KV persistence.
// Params: server URLs and bucket name.
// Returns: NATS store setup input.
type NATSSettings struct {
	URL    []string
	Bucket string
}

// NATSStore persists snapshots in one JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed store implementation.
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore opens or creates KV bucket and returns NATS backend.
// Params: NATS settings.
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings NATSSettings) (*NATSStore, error) {
	if strings.TrimSpace(settings.Bucket) == "" {
		return nil, errors.New("nats bucket is required")
	}
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  settings.Bucket,
			History: 1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

// Load reads latest snapshot revision for key.
// Params: collection key.
// Returns: payload or ErrNotFound.
func (s *NATSStore) Load(_ context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value(), nil
}

// Save writes snapshot unconditionally.
// Params: collection key and payload.
// Returns: put error.
func (s *NATSStore) Save(_ context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Close closes underlying NATS connection.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}
