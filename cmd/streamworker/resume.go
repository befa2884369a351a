package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/internal/ingest"
	"github.com/bft-labs/streamworker/internal/legalentity"
	"github.com/bft-labs/streamworker/pkg/log"
)

const kindLegalEntities = "legal-entities"

func newResumeCommand(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Finish units of work an earlier run left unfinished",
		Long: `Load every stored unit of work of one kind that never finished, for
example because the process was killed, and execute its pending tasks.
Needs durable persistence (file, badger, sqlite or postgres).`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.run(func(ctx context.Context, a *app.App) error {
				out := ingest.NewOutcomeWriter(os.Stdout)
				n, err := resume(ctx, a, kind, out)
				if err != nil {
					return err
				}
				total, failed := out.Counts()
				c.logger.Info("resume finished",
					log.String("kind", kind),
					log.Int("units", n),
					log.Int("tasks", total),
					log.Int("failed", failed),
				)
				return out.Err()
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindLimits, "unit kind: limits, transactions, arrangements or legal-entities")
	return cmd
}

func resume(ctx context.Context, a *app.App, kind string, out *ingest.OutcomeWriter) (int, error) {
	switch kind {
	case kindLimits:
		svc, err := a.LimitsService()
		if err != nil {
			return 0, err
		}
		return svc.Resume(ctx, ingest.Emit[backend.IngestedLimit, backend.LimitIngestionReport](out))

	case kindTransactions:
		svc, err := a.TransactionsService()
		if err != nil {
			return 0, err
		}
		return svc.Resume(ctx, ingest.Emit[[]backend.Transaction, []backend.TransactionID](out))

	case kindArrangements:
		svc, err := a.ArrangementsService()
		if err != nil {
			return 0, err
		}
		return svc.Resume(ctx, ingest.Emit[backend.Arrangement, backend.ArrangementBatchItem](out))

	case kindLegalEntities:
		svc, err := a.LegalEntityService()
		if err != nil {
			return 0, err
		}
		return svc.Resume(ctx, ingest.Emit[legalentity.Hierarchy, legalentity.Created](out))

	default:
		return 0, fmt.Errorf("unknown kind %q (want %s, %s, %s or %s)", kind, kindLimits, kindTransactions, kindArrangements, kindLegalEntities)
	}
}
