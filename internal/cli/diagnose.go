package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tmuras/medic/internal/approval"
	"github.com/tmuras/medic/internal/audit"
	"github.com/tmuras/medic/internal/classify"
	"github.com/tmuras/medic/internal/config"
	"github.com/tmuras/medic/internal/filter"
	"github.com/tmuras/medic/internal/providers"
	"github.com/tmuras/medic/internal/reason"
	"github.com/tmuras/medic/internal/retry"
	"github.com/tmuras/medic/internal/session"
	"github.com/tmuras/medic/internal/sshexec"
)

var (
	diagHost        string
	diagPort        int
	diagUser        string
	diagPassword    string
	diagKey         string
	diagAskPassword bool
	diagIssue       string
	diagProvider    string
	diagAPIKey      string
	diagModel       string
	diagBaseURL     string
	diagFilterModel string
	diagFilterURL   string
	diagMaxTurns    int
	diagTimeout     time.Duration
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Start a guided troubleshooting session against a remote host",
	Long: `Start an interactive troubleshooting session. Describe the problem,
then medic proposes diagnostic commands one at a time. Read-only commands run
immediately; anything that could change the host waits for your confirmation.

Examples:
  medic diagnose --host web01 --user admin --ask-password
  medic diagnose --host db01 --user root --key ~/.ssh/id_ed25519 \
      --issue "mysql stopped accepting connections"`,
	RunE:          diagnoseCommand,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagHost, "host", "", "Target host address (or MEDIC_HOST)")
	diagnoseCmd.Flags().IntVar(&diagPort, "port", 0, "SSH port (default 22)")
	diagnoseCmd.Flags().StringVar(&diagUser, "user", "", "SSH user (or MEDIC_USER)")
	diagnoseCmd.Flags().StringVar(&diagPassword, "password", "", "SSH password (prefer --ask-password or MEDIC_SSH_PASSWORD)")
	diagnoseCmd.Flags().StringVar(&diagKey, "key", "", "Path to SSH private key")
	diagnoseCmd.Flags().BoolVar(&diagAskPassword, "ask-password", false, "Prompt for the SSH password")
	diagnoseCmd.Flags().StringVar(&diagIssue, "issue", "", "Problem description (prompted interactively when omitted)")
	diagnoseCmd.Flags().StringVar(&diagProvider, "provider", "", "Reasoning provider: openai or gemini (default openai)")
	diagnoseCmd.Flags().StringVar(&diagAPIKey, "api-key", "", "Reasoning provider API key (or MEDIC_API_KEY)")
	diagnoseCmd.Flags().StringVar(&diagModel, "model", "", "Reasoning model name (provider default when omitted)")
	diagnoseCmd.Flags().StringVar(&diagBaseURL, "base-url", "", "Override the reasoning provider endpoint")
	diagnoseCmd.Flags().StringVar(&diagFilterModel, "filter-model", "", "Local filtering model (default gemma:7b)")
	diagnoseCmd.Flags().StringVar(&diagFilterURL, "filter-url", "", "Local model endpoint (default http://localhost:11434)")
	diagnoseCmd.Flags().IntVar(&diagMaxTurns, "max-turns", 0, "Turn ceiling before the session is forced to conclude (default 10)")
	diagnoseCmd.Flags().DurationVar(&diagTimeout, "timeout", 0, "Per-command execution timeout (default 60s)")
	rootCmd.AddCommand(diagnoseCmd)
}

func diagnoseCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Config{
		RulesPath:      rulesPath,
		LogPath:        logPath,
		Host:           diagHost,
		Port:           diagPort,
		User:           diagUser,
		SSHPass:        diagPassword,
		SSHKey:         diagKey,
		FilterModel:    diagFilterModel,
		FilterBaseURL:  diagFilterURL,
		Provider:       diagProvider,
		APIKey:         diagAPIKey,
		Model:          diagModel,
		BaseURL:        diagBaseURL,
		MaxTurns:       diagMaxTurns,
		CommandTimeout: diagTimeout,
	})
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return fmt.Errorf("a target host is required (--host or MEDIC_HOST)")
	}
	if cfg.User == "" {
		return fmt.Errorf("an SSH user is required (--user or MEDIC_USER)")
	}
	if cfg.APIKey == "" {
		key, err := promptPassword(fmt.Sprintf("API key for %s: ", cfg.Provider))
		if err != nil {
			return fmt.Errorf("a reasoning API key is required (--api-key or MEDIC_API_KEY): %w", err)
		}
		cfg.APIKey = key
	}

	if diagAskPassword || (cfg.SSHPass == "" && cfg.SSHKey == "") {
		pass, err := promptPassword(fmt.Sprintf("SSH password for %s@%s: ", cfg.User, cfg.Host))
		if err != nil {
			return err
		}
		cfg.SSHPass = pass
	}

	issue := strings.TrimSpace(diagIssue)
	if issue == "" {
		issue, err = promptIssue()
		if err != nil {
			return err
		}
	}

	rules, err := classify.LoadRules(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("load classification rules: %w", err)
	}

	auditor, err := audit.Open(cfg.LogPath)
	if err != nil {
		return err
	}
	defer auditor.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The local filter must be reachable before anything touches the host;
	// without it no output can ever be forwarded for analysis.
	local := providers.NewOllamaClient(cfg.FilterModel, cfg.FilterBaseURL, 120*time.Second)
	filt := filter.New(local, retry.DefaultConfig())
	preflightCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = filt.Preflight(preflightCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("local filtering model at %s is unreachable (is Ollama running?): %w", cfg.FilterBaseURL, err)
	}

	reasoner, err := providers.NewReasoning(cfg.Provider, cfg.APIKey, cfg.Model, cfg.BaseURL)
	if err != nil {
		return err
	}
	planner := reason.New(reasoner, retry.DefaultConfig())

	fmt.Fprintf(os.Stderr, "Connecting to %s@%s...\n", cfg.User, cfg.Host)
	exec, err := sshexec.Connect(sshexec.HostConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.SSHPass,
		KeyPath:        cfg.SSHKey,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer exec.Close()

	orch := session.New(planner, filt, exec, classify.New(rules), approval.NewTerminal(), auditor, session.Config{
		MaxTurns:       cfg.MaxTurns,
		CommandTimeout: cfg.CommandTimeout,
		OnTurn:         printTurn,
	})

	sess, err := orch.Run(ctx, cfg.Host, issue)
	if sess != nil && sess.Conclusion != "" {
		fmt.Println()
		fmt.Println("=== Conclusion ===")
		fmt.Println(sess.Conclusion)
	}
	return err
}

func printTurn(t session.Turn) {
	fmt.Printf("\n--- Turn %d ---\n", t.Index)
	fmt.Printf("$ %s  [%s]\n", t.Command, t.Verdict)
	switch t.Outcome {
	case session.OutcomeDenied:
		fmt.Println("(skipped: declined)")
	case session.OutcomeFailed:
		fmt.Printf("(failed: %s)\n", t.Error)
	default:
		if t.ExitCode != 0 {
			fmt.Printf("(exit %d)\n", t.ExitCode)
		}
		if t.Output != "" {
			fmt.Println(t.Output)
		}
	}
}

func promptPassword(prompt string) (string, error) {
	if !approval.IsInteractive() {
		return "", fmt.Errorf("cannot prompt for a password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}

func promptIssue() (string, error) {
	if !approval.IsInteractive() {
		return "", fmt.Errorf("an issue description is required (--issue)")
	}
	fmt.Fprint(os.Stderr, "Describe the problem: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read issue description: %w", err)
	}
	issue := strings.TrimSpace(line)
	if issue == "" {
		return "", fmt.Errorf("the issue description cannot be empty")
	}
	return issue, nil
}
