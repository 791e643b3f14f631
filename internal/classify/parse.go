package classify

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// maxParseDepth bounds recursion into inline shell code (sh -c "...").
const maxParseDepth = 2

// parsedCommand is the flattened view of a shell command the classifier needs:
// every executable segment across pipes, chains, and subshells, plus every
// redirection. Flag parsing and path extraction are deliberately out of scope.
type parsedCommand struct {
	Segments    []segment
	Operators   []string
	Redirects   []redirect
	Subcommands []*parsedCommand
}

type segment struct {
	Verb     string
	Args     []string
	Elevated bool     // wrapped in sudo/doas
	Hazards  []string // flags that mutate regardless of verb, e.g. find -delete
}

type redirect struct {
	Op     string
	Target string
}

// Writes reports whether the redirection sends data into a file.
func (r redirect) Writes() bool {
	switch r.Op {
	case ">", ">>", ">|", "&>", "&>>", "<>":
		return true
	}
	return false
}

var elevationPrefixes = map[string]bool{
	"sudo": true,
	"doas": true,
	"su":   true,
}

var shellInterpreters = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
	"dash": true,
	"ksh":  true,
}

// wrapperCommands run their first argument as a command, so the wrapped verb
// must be classified too.
var wrapperCommands = map[string]bool{
	"xargs":   true,
	"watch":   true,
	"timeout": true,
	"nohup":   true,
	"nice":    true,
	"ionice":  true,
	"stdbuf":  true,
	"env":     true,
}

// mutatingFlags are argument tokens that make an otherwise read-only verb
// write or execute, keyed by verb.
var mutatingFlags = map[string]map[string]bool{
	"find": {"-delete": true, "-exec": true, "-execdir": true, "-ok": true, "-okdir": true},
	"sed":  {"-i": true, "--in-place": true},
	"curl": {"-o": true, "-O": true, "--output": true, "--remote-name": true},
}

// parse converts a raw command into a parsedCommand, or nil when the bash
// grammar rejects it. Callers treat nil as unclassifiable.
func parse(command string) *parsedCommand {
	return parseWithDepth(command, 0)
}

func parseWithDepth(command string, depth int) *parsedCommand {
	if depth >= maxParseDepth {
		return nil
	}

	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil
	}

	pc := &parsedCommand{}
	for _, stmt := range file.Stmts {
		walkStmt(pc, stmt, depth)
	}
	return pc
}

func walkStmt(pc *parsedCommand, stmt *syntax.Stmt, depth int) {
	if stmt.Cmd == nil {
		return
	}

	for _, redir := range stmt.Redirs {
		r := redirect{Op: redirectOp(redir)}
		if redir.Word != nil {
			r.Target = wordText(redir.Word)
			extractSubstitutions(pc, redir.Word, depth)
		}
		pc.Redirects = append(pc.Redirects, r)
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		for _, w := range cmd.Args {
			extractSubstitutions(pc, w, depth)
		}
		seg, ok := callToSegment(cmd)
		if !ok {
			return
		}
		pc.Segments = append(pc.Segments, seg)
		// Inline shell code gets parsed one level down so "sh -c 'rm x'"
		// exposes the rm.
		if shellInterpreters[seg.Verb] {
			if inner := inlineCode(seg); inner != "" {
				if sub := parseWithDepth(inner, depth+1); sub != nil {
					pc.Subcommands = append(pc.Subcommands, sub)
				}
			}
		}

	case *syntax.BinaryCmd:
		walkStmt(pc, cmd.X, depth)
		pc.Operators = append(pc.Operators, binaryOp(cmd.Op))
		walkStmt(pc, cmd.Y, depth)

	case *syntax.Subshell:
		for _, s := range cmd.Stmts {
			walkStmt(pc, s, depth)
		}

	case *syntax.Block:
		for _, s := range cmd.Stmts {
			walkStmt(pc, s, depth)
		}
	}
}

func callToSegment(call *syntax.CallExpr) (segment, bool) {
	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, wordText(w))
	}
	if len(words) == 0 {
		return segment{}, false
	}

	seg := segment{Verb: baseName(words[0])}
	rest := words[1:]

	if elevationPrefixes[seg.Verb] {
		seg.Elevated = true
		// Skip elevation flags to surface the wrapped verb for reporting.
		for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
			rest = rest[1:]
		}
		if len(rest) > 0 {
			seg.Verb = baseName(rest[0])
			rest = rest[1:]
		}
	}

	flagged := mutatingFlags[seg.Verb]
	for _, w := range rest {
		if strings.HasPrefix(w, "-") {
			if flagged[w] || (flagged != nil && flagged[strings.SplitN(w, "=", 2)[0]]) {
				seg.Hazards = append(seg.Hazards, w)
			}
			continue
		}
		seg.Args = append(seg.Args, unquote(w))
	}
	return seg, true
}

// extractSubstitutions classifies commands nested inside $(...), backticks,
// and <(...)/>(...) within a word. They execute just like top-level commands,
// so they join the segment set the same way inline shell code does.
func extractSubstitutions(pc *parsedCommand, word *syntax.Word, depth int) {
	syntax.Walk(word, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CmdSubst:
			sub := &parsedCommand{}
			for _, s := range n.Stmts {
				walkStmt(sub, s, depth)
			}
			pc.Subcommands = append(pc.Subcommands, sub)
			return false
		case *syntax.ProcSubst:
			sub := &parsedCommand{}
			for _, s := range n.Stmts {
				walkStmt(sub, s, depth)
			}
			pc.Subcommands = append(pc.Subcommands, sub)
			return false
		}
		return true
	})
}

// expandWrappers turns "xargs rm" style segments into an additional segment
// for the wrapped command so the rule lists see the real verb.
func expandWrappers(segs []segment) []segment {
	out := make([]segment, 0, len(segs))
	for _, seg := range segs {
		out = append(out, seg)
		inner := seg
		for wrapperCommands[inner.Verb] && len(inner.Args) > 0 {
			inner = segment{
				Verb:     baseName(inner.Args[0]),
				Args:     inner.Args[1:],
				Elevated: inner.Elevated,
			}
			out = append(out, inner)
		}
	}
	return out
}

// inlineCode extracts the argument following -c for a shell interpreter.
func inlineCode(seg segment) string {
	if len(seg.Args) > 0 {
		return seg.Args[0]
	}
	return ""
}

func allRedirects(pc *parsedCommand) []redirect {
	if pc == nil {
		return nil
	}
	redirs := make([]redirect, len(pc.Redirects))
	copy(redirs, pc.Redirects)
	for _, sub := range pc.Subcommands {
		redirs = append(redirs, allRedirects(sub)...)
	}
	return redirs
}

func allSegments(pc *parsedCommand) []segment {
	if pc == nil {
		return nil
	}
	segs := make([]segment, len(pc.Segments))
	copy(segs, pc.Segments)
	for _, sub := range pc.Subcommands {
		segs = append(segs, allSegments(sub)...)
	}
	return expandWrappers(segs)
}

func wordText(word *syntax.Word) string {
	var sb strings.Builder
	printer := syntax.NewPrinter()
	printer.Print(&sb, word)
	return sb.String()
}

func baseName(word string) string {
	word = unquote(word)
	if idx := strings.LastIndex(word, "/"); idx >= 0 {
		word = word[idx+1:]
	}
	return word
}

func unquote(s string) string {
	s = strings.Trim(s, `'"`)
	return s
}

func redirectOp(redir *syntax.Redirect) string {
	switch redir.Op {
	case syntax.RdrOut:
		return ">"
	case syntax.AppOut:
		return ">>"
	case syntax.RdrIn:
		return "<"
	case syntax.RdrAll:
		return "&>"
	case syntax.AppAll:
		return "&>>"
	default:
		return redir.Op.String()
	}
}

func binaryOp(op syntax.BinCmdOperator) string {
	switch op {
	case syntax.Pipe:
		return "|"
	case syntax.AndStmt:
		return "&&"
	case syntax.OrStmt:
		return "||"
	default:
		return op.String()
	}
}
