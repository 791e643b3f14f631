package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tmuras/medic/internal/audit"
	"github.com/tmuras/medic/internal/config"
)

var (
	logSession string
	logLast    int
	logSummary bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `View the append-only audit log of past troubleshooting sessions.

Examples:
  medic log                      # Show all entries
  medic log --last 20            # Show the 20 most recent entries
  medic log --session <id>       # Show one session's entries
  medic log --summary            # Per-session statistics`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logSession, "session", "", "Filter by session ID")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show per-session summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Config{RulesPath: rulesPath, LogPath: logPath})
	if err != nil {
		return err
	}

	events, err := audit.Read(cfg.LogPath, 0)
	if err != nil {
		return err
	}
	if logSession != "" {
		events = filterBySession(events, logSession)
	}
	if len(events) == 0 {
		fmt.Println("No audit log entries found.")
		return nil
	}

	if logSummary {
		printLogSummary(events)
		return nil
	}

	if logLast > 0 && logLast < len(events) {
		events = events[len(events)-logLast:]
	}
	for _, ev := range events {
		printLogEvent(ev)
	}
	return nil
}

func filterBySession(events []audit.Event, sessionID string) []audit.Event {
	var out []audit.Event
	for _, ev := range events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out
}

func printLogEvent(ev audit.Event) {
	ts := ev.Timestamp.Format("2006-01-02 15:04:05")
	switch ev.Kind {
	case audit.KindSessionStart:
		fmt.Printf("%s  session %s started  host=%s\n", ts, shortID(ev.SessionID), ev.Host)
		if ev.Issue != "" {
			fmt.Printf("%s    issue: %s\n", strings.Repeat(" ", len(ts)), ev.Issue)
		}
	case audit.KindTurn:
		fmt.Printf("%s  [%s] turn %d  %s  verdict=%s outcome=%s",
			ts, shortID(ev.SessionID), ev.Turn, ev.Command, ev.Verdict, ev.Outcome)
		if ev.Decision != "" {
			fmt.Printf(" decision=%s", ev.Decision)
		}
		if ev.Error != "" {
			fmt.Printf(" error=%q", ev.Error)
		}
		fmt.Println()
	case audit.KindSessionEnd:
		fmt.Printf("%s  session %s ended  outcome=%s\n", ts, shortID(ev.SessionID), ev.Outcome)
	}
}

func printLogSummary(events []audit.Event) {
	type stats struct {
		host     string
		turns    int
		denied   int
		outcome  string
		firstIdx int
	}
	order := []string{}
	byID := map[string]*stats{}

	for i, ev := range events {
		s, ok := byID[ev.SessionID]
		if !ok {
			s = &stats{firstIdx: i}
			byID[ev.SessionID] = s
			order = append(order, ev.SessionID)
		}
		switch ev.Kind {
		case audit.KindSessionStart:
			s.host = ev.Host
		case audit.KindTurn:
			s.turns++
			if ev.Outcome == "denied" {
				s.denied++
			}
		case audit.KindSessionEnd:
			s.outcome = ev.Outcome
		}
	}

	fmt.Printf("%-12s %-20s %6s %7s %-10s\n", "SESSION", "HOST", "TURNS", "DENIED", "OUTCOME")
	for _, id := range order {
		s := byID[id]
		outcome := s.outcome
		if outcome == "" {
			outcome = "incomplete"
		}
		fmt.Printf("%-12s %-20s %6d %7d %-10s\n", shortID(id), s.host, s.turns, s.denied, outcome)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
