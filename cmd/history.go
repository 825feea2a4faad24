package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/store"
)

var (
	historyModality string
	historyLang     string
	historyLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListQueries(ctx, store.QueryFilter{
			Modality: model.Modality(historyModality),
			Language: historyLang,
			Limit:    historyLimit,
		})
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No queries recorded.")
			return nil
		}

		formatHistory(os.Stdout, records)
		return nil
	},
}

func formatHistory(out io.Writer, records []model.QueryRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tMODALITY\tLANG\tQUERY\tRESPONSE")
	_, _ = fmt.Fprintln(w, "----\t--------\t----\t-----\t--------")

	for _, r := range records {
		response := r.Result.Response
		if r.Result.IsError() {
			response = "error: " + r.Result.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Modality,
			r.Language,
			truncate(r.Query, 40),
			truncate(response, 60),
		)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	historyCmd.Flags().StringVar(&historyModality, "modality", "", "filter by modality: chat, image, or voice")
	historyCmd.Flags().StringVar(&historyLang, "lang", "", "filter by language")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to show")
	rootCmd.AddCommand(historyCmd)
}
