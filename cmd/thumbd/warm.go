package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leeforge/thumbnail/app"
	"github.com/leeforge/thumbnail/json"
	"github.com/leeforge/thumbnail/thumbnail"
)

var warmWorkers int

// warmOutcome is one line of the warm command's output.
type warmOutcome struct {
	ID     string                `json:"id"`
	Report *thumbnail.WarmReport `json:"report,omitempty"`
	Error  string                `json:"error,omitempty"`
}

var warmCmd = &cobra.Command{
	Use:   "warm <image-id>...",
	Short: "Pre-render the configured formats of images",
	Long: `Render every allowed format plus the default format of each image
through the warm worker pool, and print one JSON report per image.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if warmWorkers > 0 {
			cfg.Server.Workers = warmWorkers
		}
		if cfg.Server.QueueSize < len(args) {
			cfg.Server.QueueSize = len(args)
		}

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		a.Warmer.Start()
		defer a.Warmer.Stop(ctx)

		results, err := a.Warmer.WarmAll(ctx, args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		failed := 0
		for _, r := range results {
			out := warmOutcome{ID: r.ID, Report: r.Report}
			if r.Err != nil {
				failed++
				out.Error = r.Err.Error()
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed to warm", failed, len(results))
		}
		return nil
	},
}

func init() {
	warmCmd.Flags().IntVar(&warmWorkers, "workers", 0, "worker count (default: server.workers)")
}
