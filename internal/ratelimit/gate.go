package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrLimited is matched by every LimitError
var ErrLimited = errors.New("rate limit exceeded")

// LimitError reports an attempt made before the minimum interval elapsed
type LimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry in %s", e.Key, e.RetryAfter.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrLimited) hold for any LimitError
func (e *LimitError) Is(target error) bool {
	return target == ErrLimited
}

// RetryAfterSeconds rounds the wait up to whole seconds
func (e *LimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// TimestampStore persists the time of the last allowed attempt per key
type TimestampStore interface {
	LastAttempt(ctx context.Context, key string) (time.Time, bool, error)
	RecordAttempt(ctx context.Context, key string, at time.Time) error
}

// Gate allows at most one attempt per key within a minimum interval. The
// check and the record are a read-then-write; callers serialize attempts on
// the same key.
type Gate struct {
	store TimestampStore
	now   func() time.Time
}

// NewGate creates a gate. A nil clock uses time.Now.
func NewGate(store TimestampStore, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: store, now: now}
}

// Allow records an attempt for key, or returns a *LimitError without
// recording when the previous attempt was less than interval ago.
func (g *Gate) Allow(ctx context.Context, key string, interval time.Duration) error {
	now := g.now()

	last, ok, err := g.store.LastAttempt(ctx, key)
	if err != nil {
		return fmt.Errorf("read last attempt: %w", err)
	}
	if ok {
		elapsed := now.Sub(last)
		if elapsed < interval {
			log.Debug().
				Str("key", key).
				Dur("elapsed", elapsed).
				Dur("interval", interval).
				Msg("attempt rejected by rate limit")
			return &LimitError{Key: key, RetryAfter: interval - elapsed}
		}
	}

	if err := g.store.RecordAttempt(ctx, key, now); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// KV is the subset of a key–value store the gate needs
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// KVTimestamps stores attempt times as millisecond epoch strings in a KV
type KVTimestamps struct {
	kv KV
}

var _ TimestampStore = (*KVTimestamps)(nil)

// NewKVTimestamps wraps kv as a TimestampStore
func NewKVTimestamps(kv KV) *KVTimestamps {
	return &KVTimestamps{kv: kv}
}

// LastAttempt reads the stored timestamp. Unparseable values count as absent.
func (s *KVTimestamps) LastAttempt(ctx context.Context, key string) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("ignoring malformed attempt timestamp")
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// RecordAttempt writes at as a millisecond epoch string
func (s *KVTimestamps) RecordAttempt(ctx context.Context, key string, at time.Time) error {
	return s.kv.Set(ctx, key, strconv.FormatInt(at.UnixMilli(), 10))
}
