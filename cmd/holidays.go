package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/twmarket-cli/internal/export"
	"github.com/sells-group/twmarket-cli/internal/holiday"
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "List exchange holidays",
	Long:  "Fetches the main-board exchange's published holiday schedule for a year range.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		from, _ := cmd.Flags().GetInt("from")
		to, _ := cmd.Flags().GetInt("to")
		asJSON, _ := cmd.Flags().GetBool("json")
		if to == 0 {
			to = from
		}

		transport, err := initTransport()
		if err != nil {
			return err
		}

		hs, err := holiday.NewService(transport).FetchRange(ctx, from, to)
		if err != nil {
			return err
		}

		if asJSON {
			return export.WriteHolidaysJSON(os.Stdout, hs)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tNAME\tDESCRIPTION")
		for _, h := range hs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Date, h.Name, h.Description)
		}
		return tw.Flush()
	},
}

func init() {
	holidaysCmd.Flags().Int("from", 0, "first year (required)")
	holidaysCmd.Flags().Int("to", 0, "last year, defaults to --from")
	holidaysCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	_ = holidaysCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(holidaysCmd)
}
