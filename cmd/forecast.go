package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/forecast"
	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/render"
)

var (
	forecastState     string
	forecastDistrict  string
	forecastCrop      string
	forecastPriceType string
	forecastDays      int
	forecastLocate    bool
	forecastExport    string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Generate a crop price forecast",
	Long:  "Generates a price forecast with confidence bands for a state/district/crop selection, with optional CSV or XLSX export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("store unavailable, caching disabled", zap.Error(err))
			st = nil
		} else {
			defer st.Close() //nolint:errcheck
		}

		var engine *forecast.Engine
		if st != nil {
			engine = forecast.NewEngine(client, st)
		} else {
			engine = forecast.NewEngine(client, nil)
		}

		// Resolve state/district from device location when asked.
		if forecastLocate && (forecastState == "" || forecastDistrict == "") {
			loc := acquireLocation(ctx, true)
			if !loc.IsZero() {
				place, err := client.ReverseGeocode(ctx, loc.Lat, loc.Lng)
				if err != nil {
					zap.L().Warn("reverse geocode failed", zap.Error(err))
				} else {
					if forecastState == "" {
						forecastState = place.State
					}
					if forecastDistrict == "" {
						forecastDistrict = place.District
					}
					zap.L().Info("location resolved",
						zap.String("state", place.State),
						zap.String("district", place.District),
					)
				}
			}
		}

		engine.SelectState(forecastState)
		engine.SelectDistrict(forecastDistrict)
		engine.SelectCrop(forecastCrop)
		engine.SetPriceType(model.PriceType(forecastPriceType))
		engine.SetHorizon(forecastDays)

		series, err := engine.Generate(ctx)
		if err != nil {
			return err
		}

		if st != nil {
			if _, err := st.RecordForecast(ctx, forecastState, forecastDistrict, forecastCrop,
				model.PriceType(forecastPriceType), forecast.ClampHorizon(forecastDays), *series); err != nil {
				zap.L().Warn("forecast history write failed", zap.Error(err))
			}
		}

		pt := engine.PriceType()
		render.ForecastTable(os.Stdout, forecast.MergeForChart(series), pt)
		fmt.Fprintln(os.Stdout)
		render.ForecastMetrics(os.Stdout, series.Metrics)

		summary := forecast.Summarize(series, pt)
		fmt.Fprintf(os.Stdout, "\nForecast horizon: %+.1f%% change, range ₹%.2f to ₹%.2f, mean ₹%.2f, final band ±₹%.2f\n",
			summary.ChangePercent, summary.Min, summary.Max, summary.Mean, summary.HalfWidth)

		if forecastExport != "" {
			return exportSeries(engine.Selection(), series, pt, forecastExport)
		}
		return nil
	},
}

func exportSeries(sel forecast.Selection, series *model.ForecastSeries, pt model.PriceType, format string) error {
	switch format {
	case "csv":
		path := filepath.Join(cfg.Forecast.ExportDir, forecast.ExportFilename(sel, "csv"))
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		if err := forecast.ExportCSV(f, series, sel, pt); err != nil {
			return err
		}
		zap.L().Info("forecast exported", zap.String("path", path))
		return nil
	case "xlsx":
		path := filepath.Join(cfg.Forecast.ExportDir, forecast.ExportFilename(sel, "xlsx"))
		if err := forecast.ExportXLSX(path, series, sel, pt); err != nil {
			return err
		}
		zap.L().Info("forecast exported", zap.String("path", path))
		return nil
	default:
		return eris.Errorf("unsupported export format: %s", format)
	}
}

func init() {
	forecastCmd.Flags().StringVar(&forecastState, "state", "", "state name")
	forecastCmd.Flags().StringVar(&forecastDistrict, "district", "", "district name")
	forecastCmd.Flags().StringVar(&forecastCrop, "crop", "", "crop name")
	forecastCmd.Flags().StringVar(&forecastPriceType, "price-type", string(model.PriceTypeModal), "price column: Modal_price, Min_price, or Max_price")
	forecastCmd.Flags().IntVar(&forecastDays, "days", forecast.DefaultHorizonDays, "forecast horizon in days (7-180)")
	forecastCmd.Flags().BoolVar(&forecastLocate, "locate", false, "fill state/district from device location")
	forecastCmd.Flags().StringVar(&forecastExport, "export", "", "export format: csv or xlsx")
	rootCmd.AddCommand(forecastCmd)
}
