// Package forecast drives the price-forecast workflow: cascading
// state/district/crop selection, forecast generation against the
// backend, series merging for display, and export.
package forecast

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/pkg/agriapi"
)

// Horizon bounds for a forecast request, in days. Out-of-range values
// are clamped, not rejected.
const (
	MinHorizonDays = 7
	MaxHorizonDays = 180
)

// DefaultHorizonDays is used when no horizon is given.
const DefaultHorizonDays = 30

// ErrSelectionIncomplete is returned when generating without a full
// state/district/crop selection.
var ErrSelectionIncomplete = eris.New("forecast: state, district, and crop must all be selected")

// Backend is the subset of the API client the engine needs.
type Backend interface {
	Forecast(ctx context.Context, req agriapi.ForecastRequest) (*model.ForecastSeries, error)
	Locations(ctx context.Context) (*model.LocationTaxonomy, error)
}

// TaxonomyCache persists the selection taxonomy between runs. A nil
// cache disables caching.
type TaxonomyCache interface {
	LoadTaxonomy(ctx context.Context) (*model.LocationTaxonomy, error)
	SaveTaxonomy(ctx context.Context, t *model.LocationTaxonomy) error
}

// Selection is the current state/district/crop choice. Levels cascade:
// changing a broader level clears every narrower one.
type Selection struct {
	State    string
	District string
	Crop     string
}

// Complete reports whether all three levels are chosen.
func (s Selection) Complete() bool {
	return s.State != "" && s.District != "" && s.Crop != ""
}

// Engine owns the forecast workflow state. Methods are safe for
// concurrent use.
type Engine struct {
	backend Backend
	cache   TaxonomyCache

	mu        sync.Mutex
	taxonomy  *model.LocationTaxonomy
	selection Selection
	priceType model.PriceType
	horizon   int
	series    *model.ForecastSeries
}

// NewEngine creates an engine with the default price type and horizon.
func NewEngine(backend Backend, cache TaxonomyCache) *Engine {
	return &Engine{
		backend:   backend,
		cache:     cache,
		priceType: model.PriceTypeModal,
		horizon:   DefaultHorizonDays,
	}
}

// LoadTaxonomy returns the selection taxonomy, preferring a fresh cache
// entry and falling back to the backend. A backend fetch refreshes the
// cache; a cache write failure is logged but does not fail the load.
func (e *Engine) LoadTaxonomy(ctx context.Context) (*model.LocationTaxonomy, error) {
	e.mu.Lock()
	if e.taxonomy != nil {
		t := e.taxonomy
		e.mu.Unlock()
		return t, nil
	}
	e.mu.Unlock()

	if e.cache != nil {
		if t, err := e.cache.LoadTaxonomy(ctx); err == nil && t != nil {
			e.setTaxonomy(t)
			return t, nil
		}
	}

	t, err := e.backend.Locations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "forecast: load locations")
	}
	if e.cache != nil {
		if err := e.cache.SaveTaxonomy(ctx, t); err != nil {
			zap.L().Warn("taxonomy cache write failed", zap.Error(err))
		}
	}
	e.setTaxonomy(t)
	return t, nil
}

func (e *Engine) setTaxonomy(t *model.LocationTaxonomy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taxonomy = t
}

// SelectState sets the state and clears the district, crop, and any
// generated series.
func (e *Engine) SelectState(state string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection = Selection{State: state}
	e.series = nil
}

// SelectDistrict sets the district and clears the crop and any
// generated series. The state must already be set.
func (e *Engine) SelectDistrict(district string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.District = district
	e.selection.Crop = ""
	e.series = nil
}

// SelectCrop sets the crop, clearing any generated series.
func (e *Engine) SelectCrop(crop string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.Crop = crop
	e.series = nil
}

// SetPriceType selects which price column to forecast.
func (e *Engine) SetPriceType(pt model.PriceType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priceType = pt
}

// SetHorizon sets the forecast horizon in days, clamped to the
// supported range.
func (e *Engine) SetHorizon(days int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.horizon = ClampHorizon(days)
}

// ClampHorizon bounds a horizon to [MinHorizonDays, MaxHorizonDays].
func ClampHorizon(days int) int {
	if days < MinHorizonDays {
		return MinHorizonDays
	}
	if days > MaxHorizonDays {
		return MaxHorizonDays
	}
	return days
}

// Selection returns the current selection.
func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection
}

// PriceType returns the selected price column.
func (e *Engine) PriceType() model.PriceType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.priceType
}

// Series returns the last generated series, or nil.
func (e *Engine) Series() *model.ForecastSeries {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.series
}

// StateOptions returns the selectable states. Empty until the taxonomy
// is loaded.
func (e *Engine) StateOptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taxonomy == nil {
		return nil
	}
	return e.taxonomy.States
}

// DistrictOptions returns the districts under the selected state.
func (e *Engine) DistrictOptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taxonomy == nil || e.selection.State == "" {
		return nil
	}
	return e.taxonomy.DistrictsFor(e.selection.State)
}

// CropOptions returns the crops under the selected state and district.
func (e *Engine) CropOptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taxonomy == nil || e.selection.State == "" || e.selection.District == "" {
		return nil
	}
	return e.taxonomy.CropsFor(e.selection.State, e.selection.District)
}

// Generate requests a forecast for the current selection. Any previously
// generated series is cleared before the request so a failure never
// leaves stale results displayed.
func (e *Engine) Generate(ctx context.Context) (*model.ForecastSeries, error) {
	e.mu.Lock()
	sel := e.selection
	pt := e.priceType
	horizon := e.horizon
	e.series = nil
	e.mu.Unlock()

	if !sel.Complete() {
		return nil, ErrSelectionIncomplete
	}

	series, err := e.backend.Forecast(ctx, agriapi.ForecastRequest{
		State:        sel.State,
		District:     sel.District,
		Crop:         sel.Crop,
		PriceType:    pt,
		ForecastDays: horizon,
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.series = series
	e.mu.Unlock()

	zap.L().Info("forecast generated",
		zap.String("state", sel.State),
		zap.String("district", sel.District),
		zap.String("crop", sel.Crop),
		zap.Int("horizon_days", horizon),
		zap.Int("historical_points", len(series.Historical)),
		zap.Int("forecast_points", len(series.Forecast)),
	)
	return series, nil
}

// MergeForChart flattens a series into a single ordered point list for
// display: the historical window first, then the forecast horizon, each
// point tagged with its origin. Historical points carry no confidence
// band.
func MergeForChart(series *model.ForecastSeries) []model.ChartPoint {
	if series == nil {
		return nil
	}
	points := make([]model.ChartPoint, 0, len(series.Historical)+len(series.Forecast))
	for _, p := range series.Historical {
		points = append(points, model.ChartPoint{
			Date:       p.Date,
			MinPrice:   p.MinPrice,
			ModalPrice: p.ModalPrice,
			MaxPrice:   p.MaxPrice,
			Origin:     model.OriginHistorical,
		})
	}
	for _, p := range series.Forecast {
		upper, lower := p.ConfidenceUpper, p.ConfidenceLower
		points = append(points, model.ChartPoint{
			Date:            p.Date,
			MinPrice:        p.MinPrice,
			ModalPrice:      p.ModalPrice,
			MaxPrice:        p.MaxPrice,
			ConfidenceUpper: &upper,
			ConfidenceLower: &lower,
			Origin:          model.OriginForecast,
		})
	}
	return points
}

// Summary is derived from a generated series for display alongside the
// backend's own metrics block. ChangePercent compares the last historical
// price against the last forecast price; HalfWidth is half the band width
// of the final forecast point.
type Summary struct {
	LastHistorical float64
	LastForecast   float64
	ChangePercent  float64
	Min            float64
	Max            float64
	Mean           float64
	HalfWidth      float64
}

// Summarize derives summary figures over the forecast horizon for the
// selected price column, purely from the fetched series. Returns a zero
// Summary for an empty horizon.
func Summarize(series *model.ForecastSeries, pt model.PriceType) Summary {
	if series == nil || len(series.Forecast) == 0 {
		return Summary{}
	}

	var s Summary
	last := series.Forecast[len(series.Forecast)-1]
	s.LastForecast = last.Price(pt)
	if n := len(series.Historical); n > 0 {
		s.LastHistorical = series.Historical[n-1].Price(pt)
		if s.LastHistorical != 0 {
			s.ChangePercent = (s.LastForecast - s.LastHistorical) / s.LastHistorical * 100
		}
	}
	s.HalfWidth = (last.ConfidenceUpper - last.ConfidenceLower) / 2

	s.Min = series.Forecast[0].Price(pt)
	s.Max = s.Min
	var sum float64
	for _, p := range series.Forecast {
		v := p.Price(pt)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += v
	}
	s.Mean = sum / float64(len(series.Forecast))
	return s
}
