package backend

import (
	"context"
	"time"

	"landledger/internal/cache"
	"landledger/internal/services"
	"landledger/internal/storage"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// Result is everything the API process needs from its backend. Publisher is
// nil when the change feed is disabled.
type Result struct {
	Store     storage.Store
	Publisher services.Publisher
	Dashboard *cache.JSONCache
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Change feed, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Dashboard cache. Redis is shared between API instances; without it
	// each process keeps its own LRU.
	RedisURL      string
	CacheTTL      time.Duration
	LocalCacheMax int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
