package model

import "time"

// QueryRecord is one persisted query/result pair in the local history.
type QueryRecord struct {
	ID        string      `json:"id"`
	Modality  Modality    `json:"modality"`
	Query     string      `json:"query"`
	Language  string      `json:"language"`
	Result    QueryResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}

// ForecastRecord is one persisted forecast run.
type ForecastRecord struct {
	ID           string         `json:"id"`
	State        string         `json:"state"`
	District     string         `json:"district"`
	Crop         string         `json:"crop"`
	PriceType    PriceType      `json:"price_type"`
	ForecastDays int            `json:"forecast_days"`
	Series       ForecastSeries `json:"series"`
	CreatedAt    time.Time      `json:"created_at"`
}
