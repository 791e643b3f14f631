// Package redact strips customer-identifying and secret-bearing material from
// text. It is the deterministic first line of defense: command output passes
// through here before it is handed to the local filter model, and again before
// any audit record is written. The local model generalizes what survives; this
// package guarantees the obvious patterns never leave the process un-redacted.
package redact

import (
	"regexp"
	"strings"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// Credentials and tokens first, so a secret containing an IP or path is
	// collapsed before the weaker patterns see it.
	{regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----(?s:.*?)-----END (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`), "[REDACTED_PRIVATE_KEY]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|pwd|passphrase|secret|token|api[_-]?key|access[_-]?key|auth[_-]?token|client[_-]?secret)\b\s*[:=]\s*\S+`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`(?i)\bauthorization\s*:\s*bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Authorization: Bearer [REDACTED]"},
	{regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), "[REDACTED_AWS_KEY]"},
	{regexp.MustCompile(`\bgh[poasur]_[A-Za-z0-9]{36,}\b`), "[REDACTED_GITHUB_TOKEN]"},
	{regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`), "https://[REDACTED]@"},

	// Network identity.
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "XXX.XXX.XXX.XXX"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "user@example.com"},

	// Internal filesystem identity.
	{regexp.MustCompile(`/home/[^/\s]+`), "/home/user"},
	{regexp.MustCompile(`/var/log/[^/\s]+/[^\s]+`), "/var/log/service/logfile"},

	// High-entropy identifiers: hashes and long opaque IDs.
	{regexp.MustCompile(`\b[a-f0-9]{32,}\b`), "[HASH]"},
	{regexp.MustCompile(`\b[A-Z0-9]{20,}\b`), "[ID]"},
}

// Redact replaces sensitive values in the input with generic placeholders.
func Redact(input string) string {
	out := input
	for _, r := range rules {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return out
}

// RedactArgs redacts each element of an argument list.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Redact(a)
	}
	return out
}

// Hostname replaces occurrences of a known hostname with a placeholder.
// The session knows its target host, so it scrubs it explicitly rather than
// relying on pattern matching.
func Hostname(input, host string) string {
	if host == "" {
		return input
	}
	return strings.ReplaceAll(input, host, "target-host")
}
