package notifier

import (
	"context"
	"time"

	"housebot/internal/transport"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Notification is one message for one chat.
type Notification struct {
	// Channel names the stream the message belongs to ("dinner.ahead",
	// "birthday.week"). Messages without a channel are never deduplicated.
	Channel string
	Target  transport.ChatTarget
	Text    string
	Options *transport.SendOptions

	// DedupKey replaces the content hash when set, so a reminder for the same
	// date is suppressed even if its text changed.
	DedupKey string
}

// Notifier is implemented by Service and Direct.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DedupStore persists suppression windows across restarts.
type DedupStore interface {
	GetDedup(ctx context.Context, key string) (time.Time, bool, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
}

type HistoryItem struct {
	At      time.Time
	Channel string
	Text    string
}

// NotificationEvent is emitted on the event bus for notifier lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type NotificationEvent struct {
	Channel  string    `json:"channel"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
