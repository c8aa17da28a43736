package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-visible message. Terminal notifications of a
// write carry LevelSuccess or LevelError.
type Notification struct {
	ID      string      `json:"id"`
	Level   Level       `json:"level"`
	Message string      `json:"message"`
	TxHash  common.Hash `json:"txHash,omitempty"`
	Link    string      `json:"link,omitempty"`
	Time    time.Time   `json:"time"`
}

// HasTx reports whether the notification references a transaction.
func (n Notification) HasTx() bool { return n.TxHash != (common.Hash{}) }

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{slog.String("id", n.ID), slog.String("level", string(n.Level))}
	if n.HasTx() {
		attrs = append(attrs, slog.String("tx_hash", n.TxHash.Hex()))
	}
	logger.LogAttrs(ctx, level, n.Message, attrs...)
}

// Feed keeps every notification in memory, newest last.
type Feed struct {
	mu    sync.Mutex
	items []Notification
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	f.items = append(f.items, n)
	f.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (f *Feed) All() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Terminal returns the success and error notifications only.
func (f *Feed) Terminal() []Notification {
	var out []Notification
	for _, n := range f.All() {
		if n.Level != LevelInfo {
			out = append(out, n)
		}
	}
	return out
}

// Reset clears the feed.
func (f *Feed) Reset() {
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
}

type multiNotifier []Notifier

func (m multiNotifier) Notify(ctx context.Context, n Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(ctx, n)
		}
	}
}

// Tee fans a notification out to every target.
func Tee(targets ...Notifier) Notifier {
	return multiNotifier(targets)
}

func newNotification(level Level, message string, now time.Time) Notification {
	return Notification{ID: uuid.NewString(), Level: level, Message: message, Time: now}
}
