// Package render formats query results and forecast series for the
// terminal. Rendering is pure: it writes to the supplied io.Writer and
// has no side effects, so commands and tests share the same path.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// Result writes a query result as ordered blocks. An error result
// renders only the error message; a success renders, in order, the
// echoed query, the advice text, recommendations, weather context,
// market context, sources, and an audio availability note. Absent
// optional fields are omitted rather than rendered empty.
func Result(out io.Writer, res *model.QueryResult) {
	if res == nil {
		return
	}
	if res.IsError() {
		fmt.Fprintf(out, "Error: %s\n", res.Error)
		return
	}

	if res.Query != "" {
		fmt.Fprintf(out, "You asked: %s\n\n", res.Query)
	}

	fmt.Fprintln(out, res.Response)
	if res.Confidence != nil {
		fmt.Fprintf(out, "(confidence %.0f%%)\n", *res.Confidence*100)
	}

	if len(res.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRecommendations:")
		for i, rec := range res.Recommendations {
			fmt.Fprintf(out, "  %d. %s\n", i+1, rec)
		}
	}

	if res.WeatherData != nil {
		fmt.Fprintln(out, "\nWeather:")
		renderWeather(out, res.WeatherData)
	}

	if res.MarketData != nil {
		fmt.Fprintln(out, "\nMarket:")
		renderMarket(out, res.MarketData)
	}

	if len(res.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range res.Sources {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}

	if res.AudioResponse != "" {
		fmt.Fprintln(out, "\nAudio response available (use --speak to play).")
	}
}

func renderWeather(out io.Writer, w *model.WeatherBlock) {
	fmt.Fprintf(out, "  %s, %.1f°C, humidity %.0f%%", w.Description, w.Temperature, w.Humidity)
	if w.WindSpeed != nil {
		fmt.Fprintf(out, ", wind %.1f km/h", *w.WindSpeed)
	}
	fmt.Fprintln(out)
}

func renderMarket(out io.Writer, m *model.MarketBlock) {
	fmt.Fprintf(out, "  %s: ₹%.2f/quintal at %s (%s)\n", m.Crop, m.PricePerQuintal, m.Market, m.Trend)
}

// ForecastTable writes the combined historical and forecast points as a
// table. Historical rows carry no confidence band; forecast rows show
// the band bounds.
func ForecastTable(out io.Writer, points []model.ChartPoint, priceType model.PriceType) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DATE\tTYPE\t%s\tLOWER\tUPPER\n", string(priceType))
	fmt.Fprintln(w, "----\t----\t-----\t-----\t-----")
	for _, p := range points {
		lower, upper := "", ""
		if p.ConfidenceLower != nil {
			lower = fmt.Sprintf("%.2f", *p.ConfidenceLower)
		}
		if p.ConfidenceUpper != nil {
			upper = fmt.Sprintf("%.2f", *p.ConfidenceUpper)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", p.Date, p.Origin, p.Price(priceType), lower, upper)
	}
	_ = w.Flush()
}

// ForecastMetrics writes the backend metrics block plus derived summary
// figures for a generated forecast.
func ForecastMetrics(out io.Writer, m model.ForecastMetrics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintln(w, "------\t-----")
	fmt.Fprintf(w, "Trend\t%s\n", m.Trend)
	fmt.Fprintf(w, "Average price\t₹%.2f\n", m.AvgPrice)
	fmt.Fprintf(w, "Volatility\t%.2f\n", m.Volatility)
	fmt.Fprintf(w, "MAPE\t%.2f%%\n", m.MAPE)
	fmt.Fprintf(w, "Historical points\t%d\n", m.DataPoints)
	_ = w.Flush()
}
