package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"landledger/internal/amqp"
	"landledger/internal/cache"
	applog "landledger/internal/log"
	"landledger/internal/storage"
	"landledger/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background()).WithComponent(applog.ComponentBackend).Logger
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend. Failures of the optional
// change feed or Redis are logged and the backend runs without them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store storage.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		store = repo
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		store = memory.New()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	res := &Result{Store: store}
	closers := []func() error{store.Close}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	cacheStore, stop := f.createCache(ctx, config)
	res.Dashboard = cache.NewJSONCache(cacheStore)
	closers = append(closers, stop)

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return res, nil
}

// createCache prefers Redis and falls back to a process-local LRU swept by a
// cache.Manager.
func (f *DefaultFactory) createCache(ctx context.Context, config Config) (cache.Store, func() error) {
	if config.RedisURL != "" {
		r, err := cache.NewRedis(config.RedisURL, "", config.cacheTTL())
		if err == nil {
			err = r.Ping(ctx)
			if err == nil {
				f.logger.Info("Initialized Redis dashboard cache", "ttl", config.cacheTTL())
				return r, r.Close
			}
			_ = r.Close()
		}
		f.logger.Warn("Redis unavailable, using local dashboard cache", "error", err)
	}

	size := config.LocalCacheMax
	if size <= 0 {
		size = defaultLocalCacheMax
	}
	local := cache.NewLocal(size, config.cacheTTL())
	manager := cache.NewManager()
	manager.Register(local)
	manager.StartCleanup(config.cacheTTL())
	return local, func() error {
		manager.Stop()
		return nil
	}
}
