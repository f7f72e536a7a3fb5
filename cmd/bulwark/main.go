package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bulwark",
	Short: "Governance gate for autonomous agent actions",
	Long: `bulwark sits between an autonomous agent and the irreversible actions
it wants to take. Each proposed action is classified, risk-scored, and either
executed, escalated to a human, or blocked. A durable kill-switch can stop
everything and survives restarts.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real deployments use the environment directly.
		_ = godotenv.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to YAML config file")
	rootCmd.AddCommand(demoCmd, statusCmd, freezeCmd, resumeCmd)
}
