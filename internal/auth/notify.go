package auth

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier shows user-facing outcome messages
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Level of a Notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-facing message
type Notification struct {
	ID      uint64    `json:"id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed is a Notifier that logs every message and keeps the most recent ones
// for clients to poll.
type Feed struct {
	mu     sync.Mutex
	items  []Notification
	limit  int
	nextID uint64
}

var _ Notifier = (*Feed)(nil)

// NewFeed keeps at most limit notifications (20 when limit <= 0)
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 20
	}
	return &Feed{limit: limit}
}

func (f *Feed) Success(message string) { f.push(LevelSuccess, message) }

func (f *Feed) Error(message string) { f.push(LevelError, message) }

func (f *Feed) push(level Level, message string) {
	if level == LevelError {
		log.Warn().Str("notification", message).Msg("notify")
	} else {
		log.Info().Str("notification", message).Msg("notify")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.items = append(f.items, Notification{ID: f.nextID, Level: level, Message: message, At: time.Now()})
	if len(f.items) > f.limit {
		f.items = append([]Notification(nil), f.items[len(f.items)-f.limit:]...)
	}
}

// Since returns notifications with an id greater than afterID, oldest first
func (f *Feed) Since(afterID uint64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if n.ID > afterID {
			out = append(out, n)
		}
	}
	return out
}
