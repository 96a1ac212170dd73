// Package cmd provides the CLI commands for mcprelay.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinel-gate/mcprelay/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcprelay",
	Short: "mcprelay - interactive MITM proxy for MCP's JSON-RPC stream",
	Long: `mcprelay sits between an MCP client and a spawned server
subprocess, recording every JSON-RPC message that crosses the proxy and
letting an operator hold, edit, drop, or replay messages in flight.

Configuration:
  Config is loaded from mcprelay.yaml in the current directory,
  $HOME/.mcprelay/, or /etc/mcprelay/.

  Environment variables can override config values with the MCPRELAY_
  prefix. Example: MCPRELAY_UPSTREAM_COMMAND=/usr/bin/mcp-server

Commands:
  run       Start the proxy, spawning the configured upstream server
  replay    Re-send a captured request against a fresh server process
  inspect   Print a human-readable summary of a saved session
  export    Load a saved session and re-save it
  sessions  List sessions recorded in the catalog`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcprelay.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
