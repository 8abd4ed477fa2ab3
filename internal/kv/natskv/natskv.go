// Package natskv implements kv.Storage on a NATS JetStream key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Storage wraps a JetStream KeyValue bucket.
type Storage struct {
	kv jetstream.KeyValue
	nc *nats.Conn
}

// Connect dials url and opens (creating if needed) bucket.
func Connect(ctx context.Context, url, bucket string) (*Storage, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "prompt library storage",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &Storage{kv: kv, nc: nc}, nil
}

// New wraps an already opened bucket. Close is then a no-op.
func New(kv jetstream.KeyValue) *Storage {
	return &Storage{kv: kv}
}

// Get returns the latest revision of key from the bucket.
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("nats kv get %s: %w", key, err)
	}
	return string(entry.Value()), true, nil
}

// Set puts value as a new revision of key.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if _, err := s.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}
	return nil
}

// Delete places a delete marker on key. Deleting a missing key is a no-op.
func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("nats kv delete %s: %w", key, err)
	}
	return nil
}

// HealthCheck reports whether the connection is up.
func (s *Storage) HealthCheck(_ context.Context) error {
	if s.nc != nil && !s.nc.IsConnected() {
		return fmt.Errorf("nats: connection %s", s.nc.Status())
	}
	return nil
}

// Close drains the connection opened by Connect.
func (s *Storage) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
