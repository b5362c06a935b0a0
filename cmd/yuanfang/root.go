package main

import (
	"github.com/spf13/cobra"

	"yuanfang/internal/config"
)

var configPath string

// NewRootCommand builds the yuanfang CLI.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "yuanfang",
		Short: "Team collaboration assistant",
		Long: `yuanfang is a team collaboration assistant. It routes natural-language
requests to task management, team analytics, knowledge base, and emotion
analysis tools, and composes tone-aware replies.

Run "yuanfang serve" for the HTTP/WebSocket API or "yuanfang chat" for an
interactive terminal session.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newChatCommand())
	return rootCmd
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
