package model

// PriceType selects which price column a forecast predicts.
type PriceType string

const (
	PriceTypeModal PriceType = "Modal_price"
	PriceTypeMin   PriceType = "Min_price"
	PriceTypeMax   PriceType = "Max_price"
)

// ForecastPoint is one observed market price record.
type ForecastPoint struct {
	Date       string  `json:"date"`
	MinPrice   float64 `json:"min_price"`
	ModalPrice float64 `json:"modal_price"`
	MaxPrice   float64 `json:"max_price"`
}

// Price returns the column selected by pt, defaulting to the modal price.
func (p ForecastPoint) Price(pt PriceType) float64 {
	switch pt {
	case PriceTypeMin:
		return p.MinPrice
	case PriceTypeMax:
		return p.MaxPrice
	default:
		return p.ModalPrice
	}
}

// ForecastPointWithBand is a predicted point with its confidence band.
// The backend contract implies ConfidenceLower <= price <= ConfidenceUpper
// but the bounds are rendered as provided, not re-derived or clamped.
type ForecastPointWithBand struct {
	ForecastPoint
	ConfidenceUpper float64 `json:"confidence_upper"`
	ConfidenceLower float64 `json:"confidence_lower"`
}

// ForecastMetrics is the model summary block returned alongside a forecast.
type ForecastMetrics struct {
	Trend      string  `json:"trend"`
	AvgPrice   float64 `json:"avg_price"`
	Volatility float64 `json:"volatility"`
	MAPE       float64 `json:"mape"`
	DataPoints int     `json:"data_points"`
}

// ForecastSeries pairs the historical window with the predicted horizon.
// Each part is ordered ascending by date; the first forecast date follows
// the last historical date. The engine only concatenates across the
// boundary, it never re-sorts.
type ForecastSeries struct {
	Historical []ForecastPoint         `json:"historical_data"`
	Forecast   []ForecastPointWithBand `json:"forecast_data"`
	Metrics    ForecastMetrics         `json:"metrics"`
}

// PointOrigin tags a chart point with the series part it came from.
type PointOrigin string

const (
	OriginHistorical PointOrigin = "historical"
	OriginForecast   PointOrigin = "forecast"
)

// ChartPoint is a single plottable point in the merged series. Confidence
// bounds are nil for historical points.
type ChartPoint struct {
	Date            string      `json:"date"`
	MinPrice        float64     `json:"min_price"`
	ModalPrice      float64     `json:"modal_price"`
	MaxPrice        float64     `json:"max_price"`
	ConfidenceUpper *float64    `json:"confidence_upper,omitempty"`
	ConfidenceLower *float64    `json:"confidence_lower,omitempty"`
	Origin          PointOrigin `json:"type"`
}

// Price returns the column selected by pt, defaulting to the modal price.
func (c ChartPoint) Price(pt PriceType) float64 {
	switch pt {
	case PriceTypeMin:
		return c.MinPrice
	case PriceTypeMax:
		return c.MaxPrice
	default:
		return c.ModalPrice
	}
}

// LocationTaxonomy is the three-level state/district/crop selection tree.
type LocationTaxonomy struct {
	States    []string                       `json:"states"`
	Districts map[string][]string            `json:"districts"`
	Crops     map[string]map[string][]string `json:"crops"`
}

// DistrictsFor returns the districts available under a state.
func (t LocationTaxonomy) DistrictsFor(state string) []string {
	if t.Districts == nil {
		return nil
	}
	return t.Districts[state]
}

// CropsFor returns the crops available under a state/district pair.
func (t LocationTaxonomy) CropsFor(state, district string) []string {
	if t.Crops == nil {
		return nil
	}
	return t.Crops[state][district]
}
