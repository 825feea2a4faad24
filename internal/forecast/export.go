package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// ExportFilename returns the download filename for a generated
// forecast, with spaces in the selection flattened to underscores.
func ExportFilename(sel Selection, ext string) string {
	flat := func(s string) string { return strings.ReplaceAll(s, " ", "_") }
	return fmt.Sprintf("%s_%s_%s_forecast.%s", flat(sel.State), flat(sel.District), flat(sel.Crop), ext)
}

// ExportCSV writes the forecast horizon as CSV. Only predicted rows are
// exported; prices and band bounds are written with two decimals.
func ExportCSV(w io.Writer, series *model.ForecastSeries, sel Selection, pt model.PriceType) error {
	if series == nil || len(series.Forecast) == 0 {
		return eris.New("forecast export: no forecast data to export")
	}

	cw := csv.NewWriter(w)
	header := []string{
		"Date",
		"Predicted_" + string(pt),
		"Confidence_Upper",
		"Confidence_Lower",
		"State",
		"District",
		"Crop",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "forecast export: write header")
	}

	for _, p := range series.Forecast {
		row := []string{
			p.Date,
			fmt.Sprintf("%.2f", p.Price(pt)),
			fmt.Sprintf("%.2f", p.ConfidenceUpper),
			fmt.Sprintf("%.2f", p.ConfidenceLower),
			sel.State,
			sel.District,
			sel.Crop,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "forecast export: write row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "forecast export: flush")
}

// ExportXLSX writes the forecast horizon as a single-sheet workbook
// with the same columns as the CSV export, plus a metrics sheet.
func ExportXLSX(path string, series *model.ForecastSeries, sel Selection, pt model.PriceType) error {
	if series == nil || len(series.Forecast) == 0 {
		return eris.New("forecast export: no forecast data to export")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Forecast")
	if err != nil {
		return eris.Wrap(err, "forecast export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Date", "Predicted_" + string(pt), "Confidence_Upper", "Confidence_Lower",
		"State", "District", "Crop",
	} {
		header.AddCell().SetString(h)
	}

	for _, p := range series.Forecast {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Date)
		row.AddCell().SetFloatWithFormat(p.Price(pt), "0.00")
		row.AddCell().SetFloatWithFormat(p.ConfidenceUpper, "0.00")
		row.AddCell().SetFloatWithFormat(p.ConfidenceLower, "0.00")
		row.AddCell().SetString(sel.State)
		row.AddCell().SetString(sel.District)
		row.AddCell().SetString(sel.Crop)
	}

	metrics, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "forecast export: add metrics sheet")
	}
	m := series.Metrics
	for _, kv := range [][2]string{
		{"Trend", m.Trend},
		{"Average Price", fmt.Sprintf("%.2f", m.AvgPrice)},
		{"Volatility", fmt.Sprintf("%.2f", m.Volatility)},
		{"MAPE", fmt.Sprintf("%.2f", m.MAPE)},
		{"Data Points", fmt.Sprintf("%d", m.DataPoints)},
	} {
		row := metrics.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	return eris.Wrap(f.Save(path), "forecast export: save workbook")
}
