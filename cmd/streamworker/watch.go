package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/ingest"
)

func newWatchCommand(c *cli) *cobra.Command {
	var inbox, kind string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest every NDJSON file dropped into an inbox directory",
		Long: `Watch an inbox directory and ingest each *.ndjson file written to it.
Processed files are renamed to *.ndjson.done, files that could not be read
to *.ndjson.failed. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.run(func(ctx context.Context, a *app.App) error {
				handle, err := newIngester(a, kind)
				if err != nil {
					return err
				}
				out := ingest.NewOutcomeWriter(os.Stdout)
				w := ingest.NewWatcher(inbox, func(ctx context.Context, path string) error {
					return handle(ctx, path, out)
				}, ingest.WithWatcherLogger(c.logger))
				return w.Run(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&inbox, "inbox", "", "directory to watch")
	cmd.Flags().StringVar(&kind, "kind", kindLimits, "record kind: limits, transactions or arrangements")
	_ = cmd.MarkFlagRequired("inbox")
	return cmd
}
