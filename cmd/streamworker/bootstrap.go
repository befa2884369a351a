package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/ingest"
	"github.com/bft-labs/streamworker/internal/legalentity"
	"github.com/bft-labs/streamworker/pkg/worker"
)

func newBootstrapCommand(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create a legal entity with its users and product groups",
		Long: `Create a legal entity with its users and product groups from a JSON file.
The command fails if any step fails. With --compensate the steps that
already succeeded are undone.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			h, err := readHierarchy(file)
			if err != nil {
				return err
			}
			return c.run(func(ctx context.Context, a *app.App) error {
				svc, err := a.LegalEntityService()
				if err != nil {
					return err
				}
				t, err := svc.Bootstrap(ctx, h)
				if t != nil {
					out := ingest.NewOutcomeWriter(os.Stdout)
					out.Write(ingest.NewOutcome(worker.Result[*legalentity.Task]{Task: t, Err: err}))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "legal entity JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readHierarchy(path string) (legalentity.Hierarchy, error) {
	var h legalentity.Hierarchy
	b, err := os.ReadFile(path)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(b, &h); err != nil {
		return h, fmt.Errorf("decode %s: %w", path, err)
	}
	return h, nil
}
