package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/geo"
	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/store"
	"github.com/agri-agent/agriagent-cli/pkg/agriapi"
)

func sessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agriagent-session.json"
	}
	return filepath.Join(home, ".agriagent", "session.json")
}

func newClient() agriapi.Client {
	return agriapi.NewClient(
		agriapi.WithBaseURL(cfg.Backend.BaseURL),
		agriapi.WithSession(sess),
		agriapi.WithRateLimit(cfg.Backend.RequestsPerSec),
	)
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	ttl := time.Duration(cfg.Forecast.TaxonomyTTLHours) * time.Hour
	st, err := store.NewSQLite(cfg.Store.Path, ttl)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// acquireLocation resolves device coordinates when --locate is set.
// Location failures degrade to the no-location sentinel with a warning,
// they never block the query.
func acquireLocation(ctx context.Context, locate bool) model.Coordinates {
	if !locate {
		return model.Coordinates{}
	}

	var locator geo.Locator
	if cfg.Geo.Enabled {
		locator = geo.NewIPLocator(cfg.Geo.ProbeURL, time.Duration(cfg.Geo.TimeoutSecs)*time.Second)
	}
	provider := geo.NewProvider(locator)
	loc := provider.Acquire(ctx)
	if warning := provider.Warning(); warning != "" {
		zap.L().Warn(warning)
	}
	return loc
}

// recordQuery appends a result to local history; failures are logged
// and ignored so history never interferes with the query itself.
func recordQuery(ctx context.Context, modality model.Modality, query, language string, result model.QueryResult) {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("history unavailable", zap.Error(err))
		return
	}
	defer st.Close() //nolint:errcheck

	if _, err := st.RecordQuery(ctx, modality, query, language, result); err != nil {
		zap.L().Warn("history write failed", zap.Error(err))
	}
}
