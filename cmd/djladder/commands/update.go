package commands

import (
	"fmt"
	"os"

	"djladder/internal/app"
	"djladder/internal/telemetry"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the song list and refresh the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return err
		}
		logger, err := telemetry.NewLogger(telemetry.Options{Debug: cfg.Debug})
		if err != nil {
			return err
		}
		defer logger.Close()

		n, err := app.NewCatalogLoader(cfg, logger.Logger).Update(cmd.Context())
		if err != nil {
			return fmt.Errorf("update song data: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cached %s songs in %s\n", humanize.Comma(int64(n)), cfg.CachePath())
		return nil
	},
}
