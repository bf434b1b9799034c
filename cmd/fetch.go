package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/twmarket-cli/internal/export"
	"github.com/sells-group/twmarket-cli/internal/market"
	"github.com/sells-group/twmarket-cli/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one trading day",
	Long:  "Fetches the enabled data categories for one date, combines them into canonical rows, and writes them to a file or the configured store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		date, _ := cmd.Flags().GetString("date")
		source, _ := cmd.Flags().GetString("source")
		investors, _ := cmd.Flags().GetBool("investors")
		credit, _ := cmd.Flags().GetBool("credit")
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		toStore, _ := cmd.Flags().GetBool("store")

		client, err := initClient(investors, credit)
		if err != nil {
			return err
		}

		rows, err := fetchRows(ctx, client, source, date)
		if err != nil {
			if market.IsNoData(err) {
				zap.L().Info("market closed, nothing to write", zap.String("date", date))
				return nil
			}
			return err
		}

		if toStore {
			return persistDay(ctx, date, rows)
		}
		return writeRows(rows, format, out)
	},
}

func init() {
	fetchCmd.Flags().String("date", "", "trading date, YYYYMMDD (required)")
	fetchCmd.Flags().String("source", "all", "source to fetch: twse, tpex, or all")
	fetchCmd.Flags().Bool("investors", false, "include institutional investor flows")
	fetchCmd.Flags().Bool("credit", false, "include margin transaction balances")
	fetchCmd.Flags().String("format", "csv", "output format: csv or json")
	fetchCmd.Flags().String("out", "-", "output path, - for stdout")
	fetchCmd.Flags().Bool("store", false, "write to the configured store instead of a file")
	_ = fetchCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(fetchCmd)
}

// fetchRows fetches one date from one source or all of them.
func fetchRows(ctx context.Context, client *market.Client, source, date string) ([]market.Row, error) {
	if source == "all" {
		return client.FetchAll(ctx, date)
	}
	src, err := market.ParseSource(source)
	if err != nil {
		return nil, err
	}
	return client.Fetch(ctx, src, date)
}

// persistDay writes one day's rows to the store with a run record.
func persistDay(ctx context.Context, date string, rows []market.Row) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	run, err := st.CreateRun(ctx, date)
	if err != nil {
		return err
	}

	n, err := storeDay(ctx, st, date, rows)
	if err != nil {
		_ = st.FinishRun(ctx, run.ID, store.RunStatusFailed, 0, err)
		return err
	}
	return st.FinishRun(ctx, run.ID, store.RunStatusSucceeded, n, nil)
}

// storeDay replaces the day's quotes and refreshes the stock dimension.
func storeDay(ctx context.Context, st store.Store, date string, rows []market.Row) (int64, error) {
	if _, err := st.UpsertStocks(ctx, rows); err != nil {
		return 0, err
	}
	n, err := st.ReplaceDay(ctx, date, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("stored day", zap.String("date", date), zap.Int64("rows", n))
	return n, nil
}

// writeRows writes rows to out (or stdout) in the requested format.
func writeRows(rows []market.Row, format, out string) error {
	var w io.Writer = os.Stdout
	if out != "-" && out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case "csv":
		return export.WriteCSV(w, rows)
	case "json":
		return export.WriteJSON(w, rows)
	default:
		return eris.Errorf("unsupported format: %s (valid: csv, json)", format)
	}
}
