// Package storage provides the durable key/value backends the session layer
// persists credentials into. Values are opaque strings; callers own encoding.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key has no entry.
var ErrNotFound = errors.New("storage: key not found")

// ErrCorrupt is returned by Get when the backing data cannot be decoded.
// Writes replace corrupt data instead of failing.
var ErrCorrupt = errors.New("storage: corrupt data")

// Storage is a durable string store keyed by fixed names.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver    string
	Path      string
	KeyPrefix string
	Redis     *redis.Client
}

// Open builds the backend named by opts.Driver.
func Open(opts Options) (Storage, error) {
	switch opts.Driver {
	case "", DriverFile:
		if opts.Path == "" {
			return nil, errors.New("storage: file driver requires a path")
		}
		return NewFile(opts.Path), nil
	case DriverRedis:
		if opts.Redis == nil {
			return nil, errors.New("storage: redis driver requires a client")
		}
		return NewRedis(opts.Redis, opts.KeyPrefix), nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
