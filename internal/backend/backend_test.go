package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/config"
	"spendwise/internal/core"
	"spendwise/internal/store"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "memory", config: Config{Type: Memory}},
		{name: "sqlite", config: Config{Type: SQLite, SQLiteDBPath: "x.db"}},
		{name: "sqlite with feed", config: Config{Type: SQLite, SQLiteDBPath: "x.db", AMQPURL: "amqp://localhost", AMQPExchange: "x"}},
		{name: "unknown type", config: Config{Type: "sheets"}, wantErr: "invalid backend type"},
		{name: "sqlite without path", config: Config{Type: SQLite}, wantErr: "database path"},
		{name: "supabase without key", config: Config{Type: Supabase, SupabaseURL: "https://x.supabase.co"}, wantErr: "url and key"},
		{name: "memory with feed", config: Config{Type: Memory, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, wantErr: "shared backend"},
		{name: "feed without exchange", config: Config{Type: SQLite, SQLiteDBPath: "x.db", AMQPURL: "amqp://localhost"}, wantErr: "exchange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{Backend: "postgres"})
	assert.Error(t, err)

	c, err := FromAppConfig(&config.Config{Backend: config.BackendSQLite, SQLiteDBPath: "data/x.db", AMQPExchange: "changes"})
	require.NoError(t, err)
	assert.Equal(t, SQLite, c.Type)
	assert.Equal(t, "data/x.db", c.SQLiteDBPath)
	assert.Equal(t, "changes", c.AMQPExchange)
}

func TestTypes(t *testing.T) {
	for _, ty := range Types() {
		assert.True(t, ty.IsValid(), ty.String())
	}
	assert.False(t, Type("sheets").IsValid())
}

func TestMemorySnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	snapshot := filepath.Join(t.TempDir(), "snapshot.json")
	f := NewFactory(nil)

	res, err := f.Create(ctx, Config{Type: Memory, MemorySnapshot: snapshot})
	require.NoError(t, err)
	assert.Nil(t, res.Feed)
	require.NoError(t, res.Ready(ctx))

	path := store.CollectionPath("alice", store.Categories)
	require.NoError(t, res.Store.Set(ctx, path, "pets", core.Category{Name: "Pets", Icon: core.IconPawPrint}))
	require.NoError(t, res.Cleanup())

	res, err = f.Create(ctx, Config{Type: Memory, MemorySnapshot: snapshot})
	require.NoError(t, err)
	defer res.Cleanup()
	doc, err := res.Store.Get(ctx, path, "pets")
	require.NoError(t, err)
	assert.Contains(t, string(doc.Data), "Pets")
}

func TestCreateSQLite(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).Create(ctx, Config{Type: SQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "db", "spendwise.db")})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.Feed)
	assert.NoError(t, res.Ready(ctx))
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).Create(context.Background(), Config{Type: SQLite})
	assert.Error(t, err)
}
