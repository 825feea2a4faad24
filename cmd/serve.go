package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agri-agent/agriagent-cli/internal/forecast"
	"github.com/agri-agent/agriagent-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local HTTP facade",
	Long:  "Serves the advice and forecast endpoints over HTTP so other tools on the network can reuse this machine's configured client and history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := newClient()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Warm the taxonomy cache before accepting traffic. A warm-up
		// failure is logged, not fatal: the backend may come up later.
		g, warmCtx := errgroup.WithContext(ctx)
		engine := forecast.NewEngine(client, st)
		g.Go(func() error {
			if _, err := engine.LoadTaxonomy(warmCtx); err != nil {
				zap.L().Warn("taxonomy warm-up failed", zap.Error(err))
			}
			return nil
		})
		_ = g.Wait()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.New(client, st).Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
