// Package cli implements the medic command tree.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rulesPath string
	logPath   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "medic",
	Short: "Medic - guided server diagnostics over SSH",
	Long: `Medic walks a remote server problem with you: it proposes diagnostic
commands, runs approved ones over SSH, scrubs their output through a local
model before anything leaves the machine, and asks an external reasoning
service what to try next. State-changing commands never run without your
explicit confirmation, and every step lands in an append-only audit log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to classification rules YAML (default: ~/.medic/rules.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to audit log file (default: ~/.medic/audit.jsonl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
