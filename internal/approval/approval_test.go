package approval

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Terminal{in: strings.NewReader(input), out: out}, out
}

func TestTerminalAsk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Decision
	}{
		{"approve short", "y\n", Approved},
		{"approve word", "yes\n", Approved},
		{"deny short", "n\n", Denied},
		{"deny word", "no\n", Denied},
		{"quit", "q\n", Aborted},
		{"abort word", "abort\n", Aborted},
		{"case insensitive", "Y\n", Approved},
		{"retry after garbage", "maybe\ny\n", Approved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, _ := newTestTerminal(tt.input)
			got, err := term.Ask(context.Background(), Prompt{Command: "systemctl restart nginx"})
			if err != nil {
				t.Fatalf("Ask: %v", err)
			}
			if got != tt.want {
				t.Errorf("Ask(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTerminalAskShowsCommandAndReasons(t *testing.T) {
	term, out := newTestTerminal("n\n")
	_, err := term.Ask(context.Background(), Prompt{
		Command: "rm -rf /var/cache/app",
		Verdict: "mutating",
		Reasons: []string{"verb 'rm' is state-changing"},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for _, want := range []string{"rm -rf /var/cache/app", "mutating", "verb 'rm'"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("prompt output missing %q", want)
		}
	}
}

func TestTerminalAskClosedInputDenies(t *testing.T) {
	term, _ := newTestTerminal("")
	got, err := term.Ask(context.Background(), Prompt{Command: "reboot"})
	if err == nil {
		t.Fatal("expected error on exhausted input")
	}
	if got != Denied {
		t.Errorf("closed input decided %v, want Denied", got)
	}
}

func TestTerminalAskCancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A reader that never yields a line keeps the prompt pending.
	term := &Terminal{in: blockingReader{}, out: &bytes.Buffer{}}
	got, err := term.Ask(ctx, Prompt{Command: "reboot"})
	if err == nil {
		t.Fatal("expected context error")
	}
	if got != Aborted {
		t.Errorf("cancelled prompt decided %v, want Aborted", got)
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestStaticSource(t *testing.T) {
	for _, d := range []Decision{Approved, Denied, Aborted} {
		got, err := Static{Decision: d}.Ask(context.Background(), Prompt{Command: "x"})
		if err != nil {
			t.Fatalf("Static.Ask: %v", err)
		}
		if got != d {
			t.Errorf("Static{%v}.Ask() = %v", d, got)
		}
	}
}
