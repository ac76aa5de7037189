// Package notify delivers user-visible notifications raised by background
// work such as failed writes and broken subscriptions.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Notification struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

func Error(title, description string) Notification {
	return Notification{Level: LevelError, Title: title, Description: description, Time: time.Now()}
}

func Info(title, description string) Notification {
	return Notification{Level: LevelInfo, Title: title, Description: description, Time: time.Now()}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Log writes notifications to slog.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "Notification", "component", "notify", "title", n.Title, "description", n.Description)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// Broadcaster keeps the most recent notifications and streams new ones to
// subscribers. Slow subscribers drop notifications rather than block.
type Broadcaster struct {
	mu     sync.Mutex
	recent []Notification
	keep   int
	subs   map[int]chan Notification
	next   int
}

func NewBroadcaster(keep int) *Broadcaster {
	if keep <= 0 {
		keep = 50
	}
	return &Broadcaster{keep: keep, subs: map[int]chan Notification{}}
}

func (b *Broadcaster) Notify(_ context.Context, n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recent = append(b.recent, n)
	if len(b.recent) > b.keep {
		b.recent = b.recent[len(b.recent)-b.keep:]
	}
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Recent returns the retained notifications, oldest first.
func (b *Broadcaster) Recent() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.recent...)
}

// Subscribe returns a channel of future notifications and a cancel func
// that closes it.
func (b *Broadcaster) Subscribe() (<-chan Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Notification, 16)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}
