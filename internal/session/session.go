// Package session owns the troubleshooting loop: plan a command, gate it,
// run it, sanitize its output, and feed the sanitized result back to the
// reasoning service until a conclusion is reached.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmuras/medic/internal/classify"
)

// State names the phase a session is in. Transitions are linear per turn
// with Aborted and Failed reachable from any phase.
type State string

const (
	StateIntake               State = "intake"
	StatePlanning             State = "planning"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateFiltering            State = "filtering"
	StateAnalyzing            State = "analyzing"
	StateConcluding           State = "concluding"
	StateTerminated           State = "terminated"
	StateAborted              State = "aborted"
	StateFailed               State = "failed"
)

// Outcome records what happened to one proposed command.
type Outcome string

const (
	// OutcomeExecuted means the command ran to completion; the exit code may
	// still be non-zero.
	OutcomeExecuted Outcome = "executed"
	// OutcomeDenied means the operator declined the command; it never ran.
	OutcomeDenied Outcome = "denied"
	// OutcomeFailed means a transport or filter failure stopped the turn.
	OutcomeFailed Outcome = "failed"
)

// Turn is one completed cycle of the loop. Turns are appended to the ledger
// and never mutated afterwards; raw stdout/stderr is not retained here, only
// the sanitized rendering.
type Turn struct {
	Index    int
	Command  string
	Verdict  classify.Verdict
	Decision string
	Outcome  Outcome
	ExitCode int
	Output   string // sanitized; empty when the command did not run
	Note     string
	Error    string
	At       time.Time
}

// Session is the full record of one troubleshooting run against one host.
type Session struct {
	ID         string
	Host       string
	Issue      string
	State      State
	Turns      []Turn
	Conclusion string
	StartedAt  time.Time
	EndedAt    time.Time
}

func newSession(host, issue string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Host:      host,
		Issue:     issue,
		State:     StateIntake,
		StartedAt: time.Now().UTC(),
	}
}

func (s *Session) appendTurn(t Turn) {
	t.Index = len(s.Turns) + 1
	t.At = time.Now().UTC()
	s.Turns = append(s.Turns, t)
}
