// Package retry provides bounded exponential backoff for the adapter calls
// that are allowed to fail transiently. Retry never changes what data flows
// where; it only re-attempts the same call with the same inputs.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Category classifies an error for retry handling.
type Category int

const (
	// CategoryTransient errors may succeed on a later attempt.
	CategoryTransient Category = iota
	// CategoryRateLimit errors should back off harder before retrying.
	CategoryRateLimit
	// CategoryPermanent errors will not be fixed by waiting; retrying stops.
	CategoryPermanent
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultConfig returns the bounds used by the adapters unless configured
// otherwise: three attempts, 1s initial backoff, doubling, capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	return c
}

// Permanent wraps an error so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Do runs op until it succeeds, the attempt bound is exhausted, the error is
// permanent, or the context is cancelled. It returns the last error observed.
func Do(ctx context.Context, name string, cfg Config, op func(ctx context.Context) error) error {
	cfg = cfg.normalized()
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		var perm permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if Categorize(lastErr) == CategoryPermanent {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		wait := backoff
		if Categorize(lastErr) == CategoryRateLimit && wait < cfg.MaxBackoff {
			wait = backoff * 2
		}
		if wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}

		log.Warn().
			Str("op", name).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("backoff", wait).
			Err(lastErr).
			Msg("Retrying after failure")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return lastErr
}

// Categorize maps an error to a retry category from its message. Adapters that
// know better wrap with Permanent instead of relying on this.
func Categorize(err error) Category {
	if err == nil {
		return CategoryTransient
	}
	msg := strings.ToLower(err.Error())

	if containsAny(msg, "rate limit", "429", "too many requests", "quota exceeded") {
		return CategoryRateLimit
	}
	if containsAny(msg, "401", "403", "unauthorized", "forbidden", "api key", "400", "bad request", "invalid", "malformed") {
		return CategoryPermanent
	}
	return CategoryTransient
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
