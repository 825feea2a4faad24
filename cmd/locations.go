package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/forecast"
)

var (
	locationsState    string
	locationsDistrict string
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List forecast states, districts, and crops",
	Long:  "Lists the selectable states; with --state, its districts; with --state and --district, the crops with forecastable price data.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("store unavailable, caching disabled", zap.Error(err))
			st = nil
		} else {
			defer st.Close() //nolint:errcheck
		}

		var engine *forecast.Engine
		if st != nil {
			engine = forecast.NewEngine(newClient(), st)
		} else {
			engine = forecast.NewEngine(newClient(), nil)
		}

		if _, err := engine.LoadTaxonomy(ctx); err != nil {
			return err
		}

		switch {
		case locationsState == "":
			printList(os.Stdout, "States:", engine.StateOptions())
		case locationsDistrict == "":
			engine.SelectState(locationsState)
			printList(os.Stdout, fmt.Sprintf("Districts in %s:", locationsState), engine.DistrictOptions())
		default:
			engine.SelectState(locationsState)
			engine.SelectDistrict(locationsDistrict)
			printList(os.Stdout, fmt.Sprintf("Crops in %s, %s:", locationsDistrict, locationsState), engine.CropOptions())
		}
		return nil
	},
}

func printList(out *os.File, heading string, items []string) {
	fmt.Fprintln(out, heading)
	if len(items) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(out, "  %s\n", item)
	}
}

func init() {
	locationsCmd.Flags().StringVar(&locationsState, "state", "", "state to list districts for")
	locationsCmd.Flags().StringVar(&locationsDistrict, "district", "", "district to list crops for")
	forecastCmd.AddCommand(locationsCmd)
}
