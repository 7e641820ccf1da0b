package commands

import (
	"fmt"
	"text/tabwriter"

	"djladder/internal/app"
	"djladder/internal/ladder"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print attempt history per mode and level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		store, err := app.OpenHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		sum, err := store.GetSummary(ctx)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		fmt.Fprintf(out, "%s attempts over %s sessions (%s success, %s fail)\n",
			humanize.Comma(int64(sum.Attempts)), humanize.Comma(int64(sum.Sessions)),
			humanize.Comma(int64(sum.Successes)), humanize.Comma(int64(sum.Failures)))
		if sum.Attempts == 0 {
			return nil
		}

		last, err := store.GetLastAttempt(ctx)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if last != nil {
			fmt.Fprintf(out, "Last: %s %s %s(%s) %s, %s\n", last.Mode, ladder.Format(last.Level),
				last.Song, last.Pattern, last.Outcome, humanize.Time(last.TS))
		}

		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODE\tLEVEL\tATTEMPTS\tSUCCESS\tRATE")
		for _, mode := range ladder.Modes() {
			levels, err := store.GetLevelStats(ctx, string(mode))
			if err != nil {
				return fmt.Errorf("read %s history: %w", mode, err)
			}
			for _, l := range levels {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f%%\n", mode, ladder.Format(l.Level), l.Attempts, l.Successes, l.SuccessRate()*100)
			}
		}
		return w.Flush()
	},
}
