// Package filter is the local sanitization stage. Raw command output enters
// here and only sanitized text leaves. There is no bypass: when the local
// backend cannot be reached within the retry budget, the caller gets an error
// and the raw text goes nowhere.
package filter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/medic/internal/providers"
	"github.com/tmuras/medic/internal/redact"
	"github.com/tmuras/medic/internal/retry"
)

var (
	// ErrUnavailable means the local backend could not be reached.
	ErrUnavailable = errors.New("local filter backend unavailable")

	// ErrTimeout means the local backend did not answer in time.
	ErrTimeout = errors.New("local filter timed out")
)

const systemPrompt = `You are a privacy filter for server diagnostics output.
Rewrite the given command output so it keeps all technical signal (error
messages, utilization numbers, service states, counts) but removes or
generalizes anything that identifies the customer or environment: hostnames,
IP addresses, usernames, email addresses, file paths under home directories,
credentials, tokens, and opaque identifiers.
Respond with the rewritten output only. Do not add commentary.`

// Meta describes where the raw text came from, for the model's benefit and
// for explicit hostname scrubbing.
type Meta struct {
	Command    string
	TargetHost string
}

// Filter sanitizes text through the local model with a deterministic
// redaction pass on both sides of the call.
type Filter struct {
	provider providers.Provider
	retry    retry.Config
}

// New creates a filter backed by the given local provider.
func New(provider providers.Provider, retryCfg retry.Config) *Filter {
	return &Filter{provider: provider, retry: retryCfg}
}

// Sanitize returns a sanitized version of raw. The deterministic redaction
// pass runs before the model call, so even the local backend never sees the
// obvious secrets, and again afterwards as a backstop for anything the model
// echoed back.
func (f *Filter) Sanitize(ctx context.Context, raw string, meta Meta) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	prepassed := redact.Hostname(redact.Redact(raw), meta.TargetHost)

	var sanitized string
	err := retry.Do(ctx, "filter.sanitize", f.retry, func(ctx context.Context) error {
		resp, err := f.provider.Chat(ctx, providers.ChatRequest{
			System: systemPrompt,
			Messages: []providers.Message{{
				Role:    "user",
				Content: fmt.Sprintf("Command: %s\n\nOutput:\n%s", meta.Command, prepassed),
			}},
		})
		if err != nil {
			return classifyFailure(err)
		}
		if strings.TrimSpace(resp.Content) == "" {
			return fmt.Errorf("%w: empty response", ErrUnavailable)
		}
		sanitized = resp.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Debug().
		Int("raw_len", len(raw)).
		Int("sanitized_len", len(sanitized)).
		Msg("Output sanitized by local filter")

	return redact.Hostname(redact.Redact(sanitized), meta.TargetHost), nil
}

// Preflight verifies the local backend answers before a session starts.
func (f *Filter) Preflight(ctx context.Context) error {
	if err := f.provider.TestConnection(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// classifyFailure maps transport errors to the adapter's error vocabulary.
// Both map to transient retry categories; the distinction matters for the
// ledger and the operator.
func classifyFailure(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// http.Client wraps its deadline error without a net.Error, so fall back
	// to the message.
	return strings.Contains(strings.ToLower(err.Error()), "timeout") ||
		strings.Contains(strings.ToLower(err.Error()), "deadline exceeded")
}
