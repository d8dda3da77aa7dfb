package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/corebridge/acp/internal/config"
)

var configShowCmd = &cobra.Command{
	Use:   "config-show",
	Short: "Print the resolved configuration as YAML",
	Long: `config-show loads acpctl's configuration the same way serve-echo and
dial do (acpctl.yaml plus ACPCTL_-prefixed env overrides) and prints the
resolved result as YAML, for inspecting what the other commands will
actually run with.`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func init() {
	rootCmd.AddCommand(configShowCmd)
}
