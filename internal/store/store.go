// Package store persists local state: query history, forecast history,
// and a cached copy of the selection taxonomy.
package store

import (
	"context"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// QueryFilter specifies criteria for listing query history.
type QueryFilter struct {
	Modality model.Modality `json:"modality,omitempty"`
	Language string         `json:"language,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the local persistence interface.
type Store interface {
	// Query history
	RecordQuery(ctx context.Context, modality model.Modality, query, language string, result model.QueryResult) (*model.QueryRecord, error)
	GetQuery(ctx context.Context, id string) (*model.QueryRecord, error)
	ListQueries(ctx context.Context, filter QueryFilter) ([]model.QueryRecord, error)

	// Forecast history
	RecordForecast(ctx context.Context, state, district, crop string, pt model.PriceType, days int, series model.ForecastSeries) (*model.ForecastRecord, error)
	ListForecasts(ctx context.Context, limit int) ([]model.ForecastRecord, error)

	// Taxonomy cache. LoadTaxonomy returns (nil, nil) when the cache is
	// empty or expired.
	LoadTaxonomy(ctx context.Context) (*model.LocationTaxonomy, error)
	SaveTaxonomy(ctx context.Context, t *model.LocationTaxonomy) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
