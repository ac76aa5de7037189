package backend

import (
	"errors"
	"fmt"
	"time"

	"spendwise/internal/config"
)

// Config holds what the factory needs to build a store.
type Config struct {
	Type Type

	// Memory specific; empty keeps nothing across restarts
	MemorySnapshot string

	// SQLite specific
	SQLiteDBPath string

	// Supabase specific
	SupabaseURL      string
	SupabaseKey      string
	SupabasePollTime time.Duration

	// Change feed, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
}

type Type string

const (
	Memory   Type = config.BackendMemory
	SQLite   Type = config.BackendSQLite
	Supabase Type = config.BackendSupabase
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Supabase:
		return true
	default:
		return false
	}
}

// Types returns every supported backend.
func Types() []Type {
	return []Type{Memory, SQLite, Supabase}
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(c.Backend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", c.Backend)
	}
	return Config{
		Type:             t,
		MemorySnapshot:   c.MemorySnapshot,
		SQLiteDBPath:     c.SQLiteDBPath,
		SupabaseURL:      c.SupabaseURL,
		SupabaseKey:      c.SupabaseKey,
		SupabasePollTime: c.SupabasePollTime,
		AMQPURL:          c.AMQPURL,
		AMQPExchange:     c.AMQPExchange,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case Supabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("supabase url and key are required for supabase backend")
		}
	case Memory:
		if c.AMQPURL != "" {
			return errors.New("the change feed needs a shared backend, not memory")
		}
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return errors.New("amqp exchange is required when the change feed is enabled")
	}
	return nil
}
