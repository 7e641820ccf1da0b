package commands

import (
	"context"

	"djladder/internal/app"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "djladder",
	Short: "Practice the DJMAX RESPECT V level ladder",
	Long: `Pick an unplayed pattern at your current level, report whether you
cleared it, and step up or down the ladder.

Data lives in the user data dir (override with DJLADDER_DATA_DIR):
  songs.json          cached song list
  cleared_songs.json  songs marked as cleared
  shown_songs.json    patterns already played per mode and level
  last_settings.json  last mode and level per mode
  history.db          every reported attempt`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(statsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
