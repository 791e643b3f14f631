// Package classify labels candidate shell commands as read-only or mutating
// before anything touches the remote host. Classification is deterministic and
// fail-closed: a command the rule set cannot vouch for is treated exactly like
// a mutating one and must be confirmed by a human.
package classify

import (
	"fmt"
	"strings"
)

// Verdict is the classification outcome for a command.
type Verdict string

const (
	// VerdictReadOnly means every segment of the command matched the
	// diagnostic allow-list and nothing writes, deletes, or elevates.
	VerdictReadOnly Verdict = "read-only"

	// VerdictMutating means at least one segment matched the deny-list or a
	// structural hazard (redirection into a file, privilege elevation).
	VerdictMutating Verdict = "mutating"

	// VerdictUnknown means some segment matched neither list. Unknown is
	// handled like mutating everywhere that matters.
	VerdictUnknown Verdict = "unknown"
)

// RequiresConfirmation reports whether a command with this verdict may only
// run after an explicit approval decision.
func (v Verdict) RequiresConfirmation() bool {
	return v != VerdictReadOnly
}

// Result carries the verdict together with the reasons that produced it, for
// the approval prompt and the audit trail.
type Result struct {
	Verdict Verdict
	Reasons []string
}

// Classifier evaluates commands against a compiled rule set.
type Classifier struct {
	readOnly        map[string]bool
	mutating        map[string]bool
	readOnlyPhrases map[string]bool
	mutatingPhrases map[string]bool
}

// New compiles a rule set into a classifier.
func New(rules Rules) *Classifier {
	return &Classifier{
		readOnly:        toSet(rules.ReadOnly),
		mutating:        toSet(rules.Mutating),
		readOnlyPhrases: toSet(rules.ReadOnlyPhrases),
		mutatingPhrases: toSet(rules.MutatingPhrases),
	}
}

// Classify returns the verdict for a command.
func (c *Classifier) Classify(command string) Verdict {
	return c.Evaluate(command).Verdict
}

// Evaluate classifies a command and explains the decision. It is pure: same
// input, same output, no I/O.
func (c *Classifier) Evaluate(command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Verdict: VerdictUnknown, Reasons: []string{"empty command"}}
	}

	if findings := scanObfuscation(command); len(findings) > 0 {
		// Deceptive encoding outranks everything else the command claims to be.
		return Result{Verdict: VerdictMutating, Reasons: findings}
	}

	parsed := parse(command)
	if parsed == nil || len(parsed.Segments) == 0 {
		// Unparseable input gets the restrictive verdict rather than a guess.
		return Result{Verdict: VerdictUnknown, Reasons: []string{"command could not be parsed"}}
	}

	var (
		mutating []string
		unknown  []string
	)

	for _, redir := range allRedirects(parsed) {
		if redir.Writes() {
			mutating = append(mutating, fmt.Sprintf("redirection %q writes to %s", redir.Op, redir.Target))
		}
	}

	for _, seg := range allSegments(parsed) {
		if seg.Elevated {
			mutating = append(mutating, fmt.Sprintf("%q runs under privilege elevation", seg.Verb))
			continue
		}
		if len(seg.Hazards) > 0 {
			mutating = append(mutating, fmt.Sprintf("%q used with mutating flag %s", seg.Verb, strings.Join(seg.Hazards, " ")))
			continue
		}

		verb := strings.ToLower(seg.Verb)

		// Phrase rules match the verb paired with either of its first two
		// positional arguments: "systemctl restart nginx" pairs on the
		// first, "service nginx restart" on the second.
		var mutatingPhrase, readOnlyPhrase string
		for i := 0; i < len(seg.Args) && i < 2; i++ {
			phrase := verb + " " + strings.ToLower(seg.Args[i])
			if c.mutatingPhrases[phrase] {
				mutatingPhrase = phrase
			}
			if c.readOnlyPhrases[phrase] {
				readOnlyPhrase = phrase
			}
		}

		switch {
		case mutatingPhrase != "":
			mutating = append(mutating, fmt.Sprintf("%q is a mutating operation", mutatingPhrase))
		case readOnlyPhrase != "":
			// Explicit phrase allowance, e.g. "systemctl status".
		case c.mutating[verb]:
			mutating = append(mutating, fmt.Sprintf("%q is on the mutating deny-list", verb))
		case c.readOnly[verb]:
			// Allow-listed diagnostic verb.
		default:
			unknown = append(unknown, fmt.Sprintf("%q matches no known verb", verb))
		}
	}

	switch {
	case len(mutating) > 0:
		return Result{Verdict: VerdictMutating, Reasons: mutating}
	case len(unknown) > 0:
		return Result{Verdict: VerdictUnknown, Reasons: unknown}
	default:
		return Result{Verdict: VerdictReadOnly}
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			set[item] = true
		}
	}
	return set
}
