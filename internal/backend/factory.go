package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendwise/internal/amqp"
	"spendwise/internal/store"
	"spendwise/internal/store/memory"
	"spendwise/internal/store/sqlite"
	"spendwise/internal/store/supabase"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create implements Factory.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLite:
		return f.createSQLite(config)
	case Supabase:
		return f.createSupabase(config)
	default:
		return f.createMemory(config)
	}
}

// connectFeed dials the broker. A broker that cannot be reached leaves the
// store working on its own.
func (f *DefaultFactory) connectFeed(config Config, refresher store.Refresher) *amqp.Feed {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP change feed", "exchange", config.AMQPExchange)
	return amqp.NewFeed(client, refresher)
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	st, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	feed := f.connectFeed(config, st)
	if feed != nil {
		st.SetChangePublisher(feed)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"feed_enabled", feed != nil)

	return &Result{
		Store:   st,
		Feed:    feed,
		Cleanup: closeAll(feed, st),
	}, nil
}

// createSupabase polls for changes. With a feed configured, change
// messages from SQLite-backed peers trigger an immediate poll.
func (f *DefaultFactory) createSupabase(config Config) (*Result, error) {
	st, err := supabase.New(config.SupabaseURL, config.SupabaseKey, config.SupabasePollTime)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase store: %w", err)
	}
	feed := f.connectFeed(config, st)

	f.logger.Info("Initialized Supabase backend",
		"url", config.SupabaseURL,
		"poll_interval", config.SupabasePollTime,
		"feed_enabled", feed != nil)

	return &Result{
		Store:   st,
		Feed:    feed,
		Cleanup: closeAll(feed, st),
	}, nil
}

func (f *DefaultFactory) createMemory(config Config) (*Result, error) {
	st := memory.New()
	if config.MemorySnapshot != "" {
		var err error
		if st, err = memory.NewFromFile(config.MemorySnapshot); err != nil {
			return nil, fmt.Errorf("failed to load memory snapshot: %w", err)
		}
	}

	f.logger.Info("Initialized memory backend", "snapshot", config.MemorySnapshot)

	cleanup := func() error {
		var saveErr error
		if config.MemorySnapshot != "" {
			if saveErr = st.Save(config.MemorySnapshot); saveErr == nil {
				f.logger.Info("Memory snapshot saved", "path", config.MemorySnapshot)
			}
		}
		return errors.Join(saveErr, st.Close())
	}
	return &Result{Store: st, Cleanup: cleanup}, nil
}

type closer interface{ Close() error }

// closeAll closes the feed before the store so no refresh lands on a
// closed store.
func closeAll(feed *amqp.Feed, st closer) CleanupFunc {
	return func() error {
		var errs []error
		if feed != nil {
			errs = append(errs, feed.Close())
		}
		errs = append(errs, st.Close())
		return errors.Join(errs...)
	}
}
