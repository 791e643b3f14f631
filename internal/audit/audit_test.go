package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "audit.jsonl")
}

func TestLogAndRead(t *testing.T) {
	path := tempLogPath(t)
	logger, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	events := []Event{
		{SessionID: "s1", Kind: KindSessionStart, Host: "db01"},
		{SessionID: "s1", Kind: KindTurn, Turn: 1, Command: "df -h", Verdict: "read-only", Outcome: "executed", Output: "/dev/sda1 92% /"},
		{SessionID: "s1", Kind: KindSessionEnd, Conclusion: "disk nearly full"},
	}
	for _, ev := range events {
		if err := logger.Log(ev); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.ID == "" {
			t.Errorf("event %d has no ID", i)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
	if got[1].Command != "df -h" || got[1].Turn != 1 {
		t.Errorf("turn record round-trip mismatch: %+v", got[1])
	}
}

func TestLogRedactsSensitiveData(t *testing.T) {
	path := tempLogPath(t)
	logger, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	err = logger.Log(Event{
		SessionID: "s1",
		Kind:      KindTurn,
		Host:      "db01",
		Command:   "mysql -u root --password=hunter2",
		Output:    "connected at 192.168.1.50 as admin@corp.example.org",
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	logger.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	for _, secret := range []string{"hunter2", "192.168.1.50", "admin@corp.example.org"} {
		if strings.Contains(content, secret) {
			t.Errorf("audit file contains unredacted %q", secret)
		}
	}
}

func TestLogAppendsAcrossReopens(t *testing.T) {
	path := tempLogPath(t)
	for i := 0; i < 2; i++ {
		logger, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := logger.Log(Event{SessionID: "s1", Kind: KindTurn, Turn: i + 1}); err != nil {
			t.Fatal(err)
		}
		logger.Close()
	}

	got, err := Read(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events after reopen, want 2", len(got))
	}
	if got[0].Turn != 1 || got[1].Turn != 2 {
		t.Errorf("events out of order: %+v", got)
	}
}

func TestReadLimit(t *testing.T) {
	path := tempLogPath(t)
	logger, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		if err := logger.Log(Event{SessionID: "s1", Kind: KindTurn, Turn: i}); err != nil {
			t.Fatal(err)
		}
	}
	logger.Close()

	got, err := Read(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Turn != 4 || got[1].Turn != 5 {
		t.Errorf("limit should keep the newest events, got %+v", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.jsonl"), 0)
	if err != nil {
		t.Fatalf("Read missing file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events from missing file, want 0", len(got))
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := tempLogPath(t)
	content := `{"id":"1","session_id":"s1","kind":"turn","turn":1}
not json at all
{"id":"2","session_id":"s1","kind":"turn","turn":2}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
}
