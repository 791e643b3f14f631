// Package reason talks to the external reasoning service. It receives only
// the issue description and the sanitized turn history, and returns the
// service's next move parsed into a closed set of actions.
package reason

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/medic/internal/providers"
	"github.com/tmuras/medic/internal/retry"
)

var (
	// ErrProvider covers quota, network, and malformed-response failures.
	ErrProvider = errors.New("reasoning provider error")

	// ErrRateLimited means the provider asked us to slow down.
	ErrRateLimited = errors.New("reasoning provider rate limited")
)

// Action is what the reasoning service wants to happen next.
type Action string

const (
	// ActionCommand proposes a diagnostic command.
	ActionCommand Action = "propose_command"
	// ActionRemediation proposes a command intended to change the system.
	ActionRemediation Action = "propose_remediation"
	// ActionConclude ends the investigation with an analysis.
	ActionConclude Action = "conclude"
)

// Plan is one parsed reasoning response.
type Plan struct {
	Action   Action
	Command  string // set for ActionCommand and ActionRemediation
	Analysis string // surrounding prose; the full conclusion for ActionConclude
}

// Step is one completed turn as the reasoning service is allowed to see it:
// sanitized output only.
type Step struct {
	Command string
	Verdict string
	Outcome string
	Output  string
	Note    string
}

const systemPrompt = `You are an expert Linux system administrator helping a
human troubleshoot a remote server. You never see raw output; everything has
been sanitized of customer identifiers before it reaches you.

Each turn, reply with exactly one of these directives on its own line:

DIAGNOSE: <one read-only shell command to gather information>
REMEDIATE: <one shell command that would fix the issue; it requires human approval>
CONCLUDE: <your final analysis and recommendation>

You may add reasoning before the directive line. Propose one command at a
time. Prefer DIAGNOSE until you understand the root cause. Destructive
commands will be shown to a human for confirmation and may be declined.`

// Planner is the reasoning adapter. Stateless between calls apart from the
// history handed in.
type Planner struct {
	provider providers.Provider
	retry    retry.Config
}

// New creates a planner on the given external provider.
func New(provider providers.Provider, retryCfg retry.Config) *Planner {
	return &Planner{provider: provider, retry: retryCfg}
}

// PlanNext asks the reasoning service for the next move given the issue and
// the full ordered sanitized history. Transient failures are retried with
// bounded exponential backoff; the error returned after exhaustion wraps
// ErrProvider or ErrRateLimited.
func (p *Planner) PlanNext(ctx context.Context, issue string, history []Step) (Plan, error) {
	messages := buildMessages(issue, history)

	var plan Plan
	err := retry.Do(ctx, "reason.plan", p.retry, func(ctx context.Context) error {
		resp, err := p.provider.Chat(ctx, providers.ChatRequest{
			System:   systemPrompt,
			Messages: messages,
		})
		if err != nil {
			if providers.IsRateLimited(err) {
				return fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return fmt.Errorf("%w: %v", ErrProvider, err)
		}

		parsed, parseErr := Parse(resp.Content)
		if parseErr != nil {
			// Unparseable output is a provider fault, not a crash; retrying
			// gives the model another chance to follow the protocol.
			return fmt.Errorf("%w: %v", ErrProvider, parseErr)
		}
		plan = parsed
		return nil
	})
	if err != nil {
		return Plan{}, err
	}

	log.Debug().
		Str("action", string(plan.Action)).
		Str("provider", p.provider.Name()).
		Msg("Reasoning service returned a plan")

	return plan, nil
}

// buildMessages renders the issue and history as an alternating chat
// transcript so the provider sees the same conversation every turn.
func buildMessages(issue string, history []Step) []providers.Message {
	messages := []providers.Message{{
		Role:    "user",
		Content: "Issue description: " + issue,
	}}

	for _, step := range history {
		messages = append(messages, providers.Message{
			Role:    "assistant",
			Content: step.Command,
		})

		var sb strings.Builder
		fmt.Fprintf(&sb, "Classification: %s\nResult: %s\n", step.Verdict, step.Outcome)
		if step.Output != "" {
			fmt.Fprintf(&sb, "Sanitized output:\n%s\n", step.Output)
		}
		if step.Note != "" {
			fmt.Fprintf(&sb, "Note: %s\n", step.Note)
		}
		messages = append(messages, providers.Message{Role: "user", Content: sb.String()})
	}

	return messages
}

// Parse extracts the directive from a free-text response. The last directive
// line wins, since models sometimes restate earlier turns while reasoning.
func Parse(content string) (Plan, error) {
	var (
		found bool
		plan  Plan
	)

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "DIAGNOSE:"):
			cmd := strings.TrimSpace(strings.TrimPrefix(trimmed, "DIAGNOSE:"))
			if cmd != "" {
				plan = Plan{Action: ActionCommand, Command: cmd, Analysis: content}
				found = true
			}
		case strings.HasPrefix(trimmed, "REMEDIATE:"):
			cmd := strings.TrimSpace(strings.TrimPrefix(trimmed, "REMEDIATE:"))
			if cmd != "" {
				plan = Plan{Action: ActionRemediation, Command: cmd, Analysis: content}
				found = true
			}
		case strings.HasPrefix(trimmed, "CONCLUDE:"):
			text := strings.TrimSpace(strings.TrimPrefix(trimmed, "CONCLUDE:"))
			plan = Plan{Action: ActionConclude, Analysis: conclusionText(content, text)}
			found = true
		}
	}

	if !found {
		return Plan{}, fmt.Errorf("response contains no DIAGNOSE/REMEDIATE/CONCLUDE directive")
	}
	return plan, nil
}

// conclusionText returns everything from the CONCLUDE marker onward, so a
// multi-line conclusion is not cut off at the marker line.
func conclusionText(content, markerLine string) string {
	idx := strings.Index(content, "CONCLUDE:")
	if idx < 0 {
		return markerLine
	}
	text := strings.TrimSpace(strings.TrimPrefix(content[idx:], "CONCLUDE:"))
	if text == "" {
		return markerLine
	}
	return text
}
