package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tmuras/medic/internal/approval"
	"github.com/tmuras/medic/internal/audit"
	"github.com/tmuras/medic/internal/classify"
	"github.com/tmuras/medic/internal/filter"
	"github.com/tmuras/medic/internal/reason"
	"github.com/tmuras/medic/internal/sshexec"
)

// ErrAborted is returned when the operator cancels the session.
var ErrAborted = errors.New("session aborted by operator")

// Planner proposes the next step from the issue and the sanitized history.
type Planner interface {
	PlanNext(ctx context.Context, issue string, history []reason.Step) (reason.Plan, error)
}

// Sanitizer scrubs raw command output before it may leave the machine.
type Sanitizer interface {
	Sanitize(ctx context.Context, raw string, meta filter.Meta) (string, error)
}

// Executor runs commands on the target host over an exclusive connection.
type Executor interface {
	Run(ctx context.Context, command string, timeout time.Duration) (sshexec.Result, error)
	Reconnect() error
	Close() error
}

// Auditor persists one record per turn plus session boundary records.
type Auditor interface {
	Log(event audit.Event) error
}

// Config bounds the loop.
type Config struct {
	// MaxTurns caps the number of turns before the session is forced to
	// conclude. Zero means the default of 10.
	MaxTurns int
	// CommandTimeout bounds each remote command. Zero means 60s.
	CommandTimeout time.Duration
	// OnTurn, when set, is called after each turn is committed to the
	// ledger. Used by the CLI to stream progress.
	OnTurn func(Turn)
}

func (c Config) normalized() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 10
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 60 * time.Second
	}
	return c
}

// Orchestrator drives one session at a time. Independent sessions use
// independent orchestrators; nothing here is shared.
type Orchestrator struct {
	planner    Planner
	sanitizer  Sanitizer
	exec       Executor
	classifier *classify.Classifier
	approver   approval.Source
	auditor    Auditor
	cfg        Config
}

// New wires an orchestrator from its collaborators.
func New(planner Planner, sanitizer Sanitizer, exec Executor, classifier *classify.Classifier, approver approval.Source, auditor Auditor, cfg Config) *Orchestrator {
	return &Orchestrator{
		planner:    planner,
		sanitizer:  sanitizer,
		exec:       exec,
		classifier: classifier,
		approver:   approver,
		auditor:    auditor,
		cfg:        cfg.normalized(),
	}
}

// Run executes the full troubleshooting loop for one issue. It returns the
// completed session in every case; the error distinguishes a normal
// conclusion (nil), an operator abort (ErrAborted), and an unrecoverable
// adapter failure. The ledger always retains whatever progress was made.
func (o *Orchestrator) Run(ctx context.Context, host, issue string) (*Session, error) {
	sess := newSession(host, issue)
	log.Info().Str("session_id", sess.ID).Str("host", host).Msg("session started")

	if err := o.auditor.Log(audit.Event{
		SessionID: sess.ID,
		Kind:      audit.KindSessionStart,
		Host:      host,
		Issue:     issue,
	}); err != nil {
		return o.fail(sess, fmt.Errorf("audit session start: %w", err))
	}

	for {
		if ctx.Err() != nil {
			return o.abort(sess)
		}
		if len(sess.Turns) >= o.cfg.MaxTurns {
			return o.concludeAtCeiling(sess)
		}

		sess.State = StatePlanning
		plan, err := o.planner.PlanNext(ctx, issue, o.history(sess))
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(sess)
			}
			return o.fail(sess, fmt.Errorf("planning: %w", err))
		}

		if plan.Action == reason.ActionConclude {
			return o.conclude(sess, plan.Analysis)
		}

		verdict := o.classifier.Evaluate(plan.Command)
		decision := approval.Approved

		if verdict.Verdict.RequiresConfirmation() {
			sess.State = StateAwaitingConfirmation
			decision, err = o.approver.Ask(ctx, approval.Prompt{
				Command:  plan.Command,
				Verdict:  string(verdict.Verdict),
				Reasons:  verdict.Reasons,
				Analysis: plan.Analysis,
			})
			if err != nil && ctx.Err() != nil {
				return o.abort(sess)
			}
			if err != nil {
				return o.fail(sess, fmt.Errorf("confirmation: %w", err))
			}
			switch decision {
			case approval.Aborted:
				return o.abort(sess)
			case approval.Denied:
				if err := o.commitTurn(sess, Turn{
					Command:  plan.Command,
					Verdict:  verdict.Verdict,
					Decision: string(decision),
					Outcome:  OutcomeDenied,
					Note:     "operator declined; command was not executed",
				}); err != nil {
					return o.fail(sess, err)
				}
				continue
			}
		}

		sess.State = StateExecuting
		res, err := o.execute(ctx, plan.Command)
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(sess)
			}
			if cerr := o.commitTurn(sess, Turn{
				Command:  plan.Command,
				Verdict:  verdict.Verdict,
				Decision: string(decision),
				Outcome:  OutcomeFailed,
				Error:    err.Error(),
			}); cerr != nil {
				return o.fail(sess, cerr)
			}
			return o.fail(sess, fmt.Errorf("execute %q: %w", plan.Command, err))
		}

		sess.State = StateFiltering
		sanitized, err := o.sanitizer.Sanitize(ctx, combinedOutput(res), filter.Meta{
			Command:    plan.Command,
			TargetHost: host,
		})
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(sess)
			}
			// The command did run; the ledger records that, but no raw text
			// is ever persisted in place of the missing sanitized output.
			if cerr := o.commitTurn(sess, Turn{
				Command:  plan.Command,
				Verdict:  verdict.Verdict,
				Decision: string(decision),
				Outcome:  OutcomeFailed,
				ExitCode: res.ExitCode,
				Error:    err.Error(),
			}); cerr != nil {
				return o.fail(sess, cerr)
			}
			return o.fail(sess, fmt.Errorf("sanitize output of %q: %w", plan.Command, err))
		}

		sess.State = StateAnalyzing
		if err := o.commitTurn(sess, Turn{
			Command:  plan.Command,
			Verdict:  verdict.Verdict,
			Decision: string(decision),
			Outcome:  OutcomeExecuted,
			ExitCode: res.ExitCode,
			Output:   sanitized,
			Note:     plan.Analysis,
		}); err != nil {
			return o.fail(sess, err)
		}
	}
}

// commitTurn appends a turn to the ledger and writes its audit record. The
// record must be durable before the turn's result feeds the next planning
// call, so an audit failure is fatal.
func (o *Orchestrator) commitTurn(sess *Session, t Turn) error {
	sess.appendTurn(t)
	committed := sess.Turns[len(sess.Turns)-1]

	if err := o.auditor.Log(audit.Event{
		SessionID: sess.ID,
		Kind:      audit.KindTurn,
		Turn:      committed.Index,
		Host:      sess.Host,
		Command:   committed.Command,
		Verdict:   string(committed.Verdict),
		Decision:  committed.Decision,
		Outcome:   string(committed.Outcome),
		ExitCode:  committed.ExitCode,
		Output:    committed.Output,
		Error:     committed.Error,
	}); err != nil {
		return fmt.Errorf("audit turn %d: %w", committed.Index, err)
	}

	log.Info().
		Str("session_id", sess.ID).
		Int("turn", committed.Index).
		Str("command", committed.Command).
		Str("outcome", string(committed.Outcome)).
		Msg("turn committed")

	if o.cfg.OnTurn != nil {
		o.cfg.OnTurn(committed)
	}
	return nil
}

// execute runs one command, allowing a single reconnect if the connection
// dropped. Repeated disconnects surface as the original transport error.
func (o *Orchestrator) execute(ctx context.Context, command string) (sshexec.Result, error) {
	res, err := o.exec.Run(ctx, command, o.cfg.CommandTimeout)
	if err == nil || !errors.Is(err, sshexec.ErrDisconnected) {
		return res, err
	}

	log.Warn().Err(err).Msg("connection lost, attempting one reconnect")
	if rerr := o.exec.Reconnect(); rerr != nil {
		return sshexec.Result{}, fmt.Errorf("reconnect after disconnect: %w", rerr)
	}
	return o.exec.Run(ctx, command, o.cfg.CommandTimeout)
}

// history renders the ledger the way the reasoning service is allowed to see
// it: sanitized output only.
func (o *Orchestrator) history(sess *Session) []reason.Step {
	steps := make([]reason.Step, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		step := reason.Step{
			Command: t.Command,
			Verdict: string(t.Verdict),
			Output:  t.Output,
		}
		switch t.Outcome {
		case OutcomeExecuted:
			step.Outcome = fmt.Sprintf("exit %d", t.ExitCode)
		case OutcomeDenied:
			step.Outcome = "not run"
			step.Note = "The operator declined this command. Propose a different approach."
		case OutcomeFailed:
			step.Outcome = "failed"
			step.Note = "The command could not be completed."
		}
		steps = append(steps, step)
	}
	return steps
}

func (o *Orchestrator) conclude(sess *Session, conclusion string) (*Session, error) {
	sess.State = StateConcluding
	sess.Conclusion = conclusion
	if err := o.auditor.Log(audit.Event{
		SessionID:  sess.ID,
		Kind:       audit.KindSessionEnd,
		Host:       sess.Host,
		Outcome:    "concluded",
		Conclusion: conclusion,
	}); err != nil {
		return o.fail(sess, fmt.Errorf("audit session end: %w", err))
	}
	sess.State = StateTerminated
	sess.EndedAt = time.Now().UTC()
	o.exec.Close()
	log.Info().Str("session_id", sess.ID).Int("turns", len(sess.Turns)).Msg("session concluded")
	return sess, nil
}

func (o *Orchestrator) concludeAtCeiling(sess *Session) (*Session, error) {
	conclusion := fmt.Sprintf(
		"Turn limit reached: %d commands were run without a conclusive diagnosis. "+
			"Review the transcript and start a new session to continue.", o.cfg.MaxTurns)
	if last := lastAnalysis(sess); last != "" {
		conclusion += "\n\nLast analysis: " + last
	}
	return o.conclude(sess, conclusion)
}

func (o *Orchestrator) abort(sess *Session) (*Session, error) {
	sess.State = StateAborted
	sess.EndedAt = time.Now().UTC()
	o.exec.Close()
	if err := o.auditor.Log(audit.Event{
		SessionID: sess.ID,
		Kind:      audit.KindSessionEnd,
		Host:      sess.Host,
		Outcome:   "aborted",
	}); err != nil {
		log.Error().Err(err).Msg("could not audit session abort")
	}
	log.Warn().Str("session_id", sess.ID).Msg("session aborted")
	return sess, ErrAborted
}

func (o *Orchestrator) fail(sess *Session, cause error) (*Session, error) {
	sess.State = StateFailed
	sess.EndedAt = time.Now().UTC()
	o.exec.Close()
	if err := o.auditor.Log(audit.Event{
		SessionID: sess.ID,
		Kind:      audit.KindSessionEnd,
		Host:      sess.Host,
		Outcome:   "failed",
		Error:     cause.Error(),
	}); err != nil {
		log.Error().Err(err).Msg("could not audit session failure")
	}
	log.Error().Err(cause).Str("session_id", sess.ID).Msg("session failed")
	return sess, cause
}

func lastAnalysis(sess *Session) string {
	for i := len(sess.Turns) - 1; i >= 0; i-- {
		if sess.Turns[i].Note != "" {
			return sess.Turns[i].Note
		}
	}
	return ""
}

func combinedOutput(res sshexec.Result) string {
	out := res.Stdout
	if res.Stderr != "" {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += res.Stderr
	}
	return out
}
