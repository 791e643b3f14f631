package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tmuras/medic/internal/classify"
	"github.com/tmuras/medic/internal/config"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the effective command classification rules",
	Long: `Print the merged classification rules as YAML: the built-in defaults
plus any overrides from the rules file. Pipe to a file to bootstrap a custom
rule set.`,
	RunE: rulesCommand,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Classify a command without running it",
	Long: `Classify a shell command the same way a session would and print the
verdict with its reasons.

Examples:
  medic rules check "systemctl status nginx"
  medic rules check "find /tmp -mtime +7 -delete"`,
	Args: cobra.MinimumNArgs(1),
	RunE: rulesCheckCommand,
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func loadEffectiveRules() (classify.Rules, error) {
	cfg, err := config.Load(config.Config{RulesPath: rulesPath, LogPath: logPath})
	if err != nil {
		return classify.Rules{}, err
	}
	return classify.LoadRules(cfg.RulesPath)
}

func rulesCommand(cmd *cobra.Command, args []string) error {
	rules, err := loadEffectiveRules()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("render rules: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func rulesCheckCommand(cmd *cobra.Command, args []string) error {
	rules, err := loadEffectiveRules()
	if err != nil {
		return err
	}

	command := strings.Join(args, " ")
	result := classify.New(rules).Evaluate(command)

	fmt.Printf("Command: %s\n", command)
	fmt.Printf("Verdict: %s\n", result.Verdict)
	if result.Verdict.RequiresConfirmation() {
		fmt.Println("A session would require confirmation before running this.")
	}
	for _, reason := range result.Reasons {
		fmt.Printf("  • %s\n", reason)
	}
	return nil
}
