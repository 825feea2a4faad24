package forecast

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

func TestExportFilename(t *testing.T) {
	sel := Selection{State: "Uttar Pradesh", District: "Agra", Crop: "Wheat"}
	assert.Equal(t, "Uttar_Pradesh_Agra_Wheat_forecast.csv", ExportFilename(sel, "csv"))
	assert.Equal(t, "Uttar_Pradesh_Agra_Wheat_forecast.xlsx", ExportFilename(sel, "xlsx"))
}

func TestExportCSV(t *testing.T) {
	series := testSeries(5, 3)
	sel := Selection{State: "Haryana", District: "Karnal", Crop: "Wheat"}

	var buf bytes.Buffer
	err := ExportCSV(&buf, series, sel, model.PriceTypeModal)
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{
		"Date", "Predicted_Modal_price", "Confidence_Upper", "Confidence_Lower",
		"State", "District", "Crop",
	}, rows[0])

	first := rows[1]
	assert.Equal(t, series.Forecast[0].Date, first[0])
	assert.Equal(t, "1805.00", first[1])
	assert.Equal(t, "1855.00", first[2])
	assert.Equal(t, "1755.00", first[3])
	assert.Equal(t, "Haryana", first[4])
	assert.Equal(t, "Karnal", first[5])
	assert.Equal(t, "Wheat", first[6])
}

func TestExportCSV_PriceTypeSelectsColumnHeader(t *testing.T) {
	series := testSeries(2, 1)
	sel := Selection{State: "Haryana", District: "Karnal", Crop: "Wheat"}

	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, series, sel, model.PriceTypeMin))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Predicted_Min_price", rows[0][1])
	// Min column of the first forecast point.
	assert.Equal(t, "1702.00", rows[1][1])
}

func TestExportCSV_EmptyForecast(t *testing.T) {
	var buf bytes.Buffer
	err := ExportCSV(&buf, &model.ForecastSeries{}, Selection{}, model.PriceTypeModal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no forecast data")

	err = ExportCSV(&buf, nil, Selection{}, model.PriceTypeModal)
	assert.Error(t, err)
}

func TestExportXLSX(t *testing.T) {
	series := testSeries(5, 3)
	sel := Selection{State: "Haryana", District: "Karnal", Crop: "Wheat"}
	path := filepath.Join(t.TempDir(), ExportFilename(sel, "xlsx"))

	require.NoError(t, ExportXLSX(path, series, sel, model.PriceTypeModal))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	sheet := f.Sheets[0]
	assert.Equal(t, "Forecast", sheet.Name)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "Predicted_Modal_price", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, series.Forecast[0].Date, sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Haryana", sheet.Rows[1].Cells[4].String())

	metrics := f.Sheets[1]
	assert.Equal(t, "Metrics", metrics.Name)
	assert.Equal(t, "Trend", metrics.Rows[0].Cells[0].String())
	assert.Equal(t, "increasing", metrics.Rows[0].Cells[1].String())
}

func TestExportXLSX_EmptyForecast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	err := ExportXLSX(path, &model.ForecastSeries{}, Selection{}, model.PriceTypeModal)
	assert.Error(t, err)
}
