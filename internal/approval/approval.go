// Package approval collects the operator's verdict before any state-changing
// command is sent to the target host. The orchestrator only ever talks to the
// Source interface, so tests and non-interactive callers can inject decisions.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Decision is the operator's answer to a confirmation prompt.
type Decision string

const (
	// Approved releases the command for execution.
	Approved Decision = "approved"
	// Denied skips the command; the session continues.
	Denied Decision = "denied"
	// Aborted ends the whole session immediately.
	Aborted Decision = "aborted"
)

// Prompt carries everything the operator needs to judge a command.
type Prompt struct {
	Command  string
	Verdict  string
	Reasons  []string
	Analysis string
}

// Source produces one decision per prompt.
type Source interface {
	Ask(ctx context.Context, p Prompt) (Decision, error)
}

// Terminal prompts on the controlling terminal. Non-interactive stdin denies
// every prompt: confirmation can never be assumed.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal builds a Source bound to stdin/stderr.
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr}
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Ask renders the prompt and blocks for a decision. Cancelling ctx aborts.
func (t *Terminal) Ask(ctx context.Context, p Prompt) (Decision, error) {
	if t.in == os.Stdin && !IsInteractive() {
		fmt.Fprintln(t.out, "stdin is not a terminal; denying state-changing command")
		return Denied, nil
	}

	fmt.Fprintln(t.out, "")
	fmt.Fprintln(t.out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(t.out, "║              ⚠️  CONFIRMATION REQUIRED                        ║")
	fmt.Fprintln(t.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(t.out, "")
	fmt.Fprintf(t.out, "Command:        %s\n", p.Command)
	fmt.Fprintf(t.out, "Classification: %s\n", p.Verdict)

	if p.Analysis != "" {
		fmt.Fprintf(t.out, "Rationale:      %s\n", p.Analysis)
	}
	if len(p.Reasons) > 0 {
		fmt.Fprintln(t.out, "Reasons:")
		for _, reason := range p.Reasons {
			fmt.Fprintf(t.out, "  • %s\n", reason)
		}
	}

	fmt.Fprintln(t.out, "")
	fmt.Fprintln(t.out, "Options:")
	fmt.Fprintln(t.out, "  [y] Yes   - run this command on the target host")
	fmt.Fprintln(t.out, "  [n] No    - skip this command, keep diagnosing")
	fmt.Fprintln(t.out, "  [q] Quit  - abort the session")
	fmt.Fprintln(t.out, "")

	type answer struct {
		d   Decision
		err error
	}
	ch := make(chan answer, 1)

	go func() {
		reader := bufio.NewReader(t.in)
		for {
			fmt.Fprint(t.out, "Your choice [y/n/q]: ")
			input, err := reader.ReadString('\n')
			if err != nil {
				// Fail closed on a broken input stream.
				ch <- answer{Denied, fmt.Errorf("read confirmation: %w", err)}
				return
			}
			switch strings.TrimSpace(strings.ToLower(input)) {
			case "y", "yes", "a", "approve":
				ch <- answer{Approved, nil}
				return
			case "n", "no", "d", "deny":
				ch <- answer{Denied, nil}
				return
			case "q", "quit", "abort":
				ch <- answer{Aborted, nil}
				return
			default:
				fmt.Fprintln(t.out, "Invalid input. Enter 'y' to run, 'n' to skip, or 'q' to abort.")
			}
		}
	}()

	select {
	case <-ctx.Done():
		// The reader goroutine stays parked on the blocking read until the
		// process exits; stdin has no portable close-on-cancel. One prompt is
		// ever pending at a time, so the leak is bounded to a single goroutine.
		return Aborted, ctx.Err()
	case a := <-ch:
		return a.d, a.err
	}
}

// Static always answers with a fixed decision.
type Static struct {
	Decision Decision
}

// Ask returns the configured decision without prompting.
func (s Static) Ask(context.Context, Prompt) (Decision, error) {
	return s.Decision, nil
}
