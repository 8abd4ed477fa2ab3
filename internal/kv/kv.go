// Package kv defines the string-valued key-value port the prompt library
// persists into.
package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by backends that enforce a size limit.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Storage is a durable string key-value store. A missing key is reported as
// ok == false with a nil error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// HealthChecker is implemented by backends that can verify connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck pings s when it supports it and succeeds otherwise.
func HealthCheck(ctx context.Context, s Storage) error {
	if hc, ok := s.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
