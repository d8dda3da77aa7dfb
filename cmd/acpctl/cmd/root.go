// Package cmd provides acpctl's CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corebridge/acp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "acpctl",
	Short: "acpctl - reference Agent Client Protocol peer",
	Long: `acpctl drives or serves the Agent Client Protocol over stdio.

Commands:
  serve-echo   Run a minimal agent that echoes prompt text back as
               agent_message_chunk updates.
  dial         Spawn an agent subprocess and drive it as a client,
               reading prompts from stdin.
  config-show  Print the resolved configuration as YAML.

Configuration is loaded from acpctl.yaml in the current directory,
$HOME/.acpctl/, or /etc/acpctl/. Environment variables override config
values with the ACPCTL_ prefix, e.g. ACPCTL_LOG_LEVEL=debug.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./acpctl.yaml)")
	rootCmd.AddCommand(serveEchoCmd)
	rootCmd.AddCommand(dialCmd)
}

func initConfig() {
	config.InitViper(cfgFile)
}
