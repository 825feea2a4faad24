package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/config"
	"github.com/agri-agent/agriagent-cli/internal/session"
)

var (
	cfg  *config.Config
	sess session.Session
)

var rootCmd = &cobra.Command{
	Use:   "agriagent",
	Short: "Multilingual crop advice and mandi price forecasts",
	Long:  "Submits chat, image, and voice queries to the AgriAgent advice backend and generates crop price forecasts with confidence bands.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		s, err := session.Load(sessionPath())
		if err != nil {
			zap.L().Warn("session load failed, continuing anonymously", zap.Error(err))
			s = session.Session{}
		}
		sess = s

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
