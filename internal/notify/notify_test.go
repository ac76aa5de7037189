package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(2)
	ch, cancel := b.Subscribe()

	b.Notify(context.Background(), Info("a", ""))
	b.Notify(context.Background(), Error("b", "x"))
	b.Notify(context.Background(), Error("c", "y"))

	recent := b.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Title)
	assert.Equal(t, LevelError, recent[1].Level)

	assert.Equal(t, "a", (<-ch).Title)
	cancel()
	cancel()
	b.Notify(context.Background(), Info("d", ""))
}

func TestLogAndMulti(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	b := NewBroadcaster(0)
	Multi{l, b}.Notify(context.Background(), Error("Sync failed", "boom"))

	assert.Contains(t, buf.String(), "Sync failed")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Len(t, b.Recent(), 1)
}
