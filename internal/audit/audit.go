// Package audit appends one JSON line per diagnostic turn to a local file.
// Records are redacted before they hit disk and never rewritten.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmuras/medic/internal/redact"
)

// Event is one audited step of a troubleshooting session.
type Event struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Turn       int       `json:"turn,omitempty"`
	Host       string    `json:"host,omitempty"`
	Issue      string    `json:"issue,omitempty"`
	Command    string    `json:"command,omitempty"`
	Verdict    string    `json:"verdict,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	ExitCode   int       `json:"exit_code,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	Conclusion string    `json:"conclusion,omitempty"`
}

// Record kinds.
const (
	KindSessionStart = "session_start"
	KindTurn         = "turn"
	KindSessionEnd   = "session_end"
)

// Logger writes Events as JSONL. Safe for concurrent use.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// Open opens or creates the audit file in append-only mode.
func Open(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{file: file}, nil
}

// Log redacts the event and appends it. The ID and timestamp are filled in
// when the caller left them empty.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	event.Issue = redact.Redact(event.Issue)
	event.Command = redact.Redact(event.Command)
	event.Output = redact.Redact(event.Output)
	event.Conclusion = redact.Redact(event.Conclusion)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Read loads events from an audit file, newest last. A missing file yields an
// empty slice. Lines that do not parse are skipped rather than failing the
// whole read; the file may legitimately contain records from older builds.
func Read(path string, limit int) ([]Event, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
