package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/session"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Clear(sessionPath()); err != nil {
			return err
		}
		zap.L().Info("session cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
