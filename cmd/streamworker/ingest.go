package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/internal/ingest"
	"github.com/bft-labs/streamworker/internal/transactions"
	"github.com/bft-labs/streamworker/pkg/log"
	"github.com/bft-labs/streamworker/pkg/worker"
)

// Record kinds accepted by ingest and watch.
const (
	kindLimits       = "limits"
	kindTransactions = "transactions"
	kindArrangements = "arrangements"
)

// fileIngester processes one NDJSON file of a given record kind.
type fileIngester func(ctx context.Context, path string, out *ingest.OutcomeWriter) error

func newIngester(a *app.App, kind string) (fileIngester, error) {
	switch kind {
	case kindLimits:
		svc, err := a.LimitsService()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, path string, out *ingest.OutcomeWriter) error {
			return readFile(path, out, func(src *ingest.Source[backend.IngestedLimit]) error {
				return svc.CreateUserLimits(ctx, src.All(), ingest.Emit[backend.IngestedLimit, backend.LimitIngestionReport](out))
			})
		}, nil

	case kindTransactions:
		svc, err := a.TransactionsService()
		if err != nil {
			return nil, err
		}
		logger := a.Logger()
		return func(ctx context.Context, path string, out *ingest.OutcomeWriter) error {
			emit := ingest.Emit[[]backend.Transaction, []backend.TransactionID](out)
			minted := 0
			err := readFile(path, out, func(src *ingest.Source[[]backend.Transaction]) error {
				return svc.ProcessTransactions(ctx, src.All(), func(r worker.Result[*transactions.Task]) {
					minted += len(transactions.IDs(r))
					emit(r)
				})
			})
			logger.Info("transactions ingested", log.String("file", path), log.Int("minted", minted))
			return err
		}, nil

	case kindArrangements:
		svc, err := a.ArrangementsService()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, path string, out *ingest.OutcomeWriter) error {
			return readFile(path, out, func(src *ingest.Source[backend.Arrangement]) error {
				return svc.UpsertArrangements(ctx, src.All(), ingest.Emit[backend.Arrangement, backend.ArrangementBatchItem](out))
			})
		}, nil

	default:
		return nil, fmt.Errorf("unknown kind %q (want %s, %s or %s)", kind, kindLimits, kindTransactions, kindArrangements)
	}
}

// readFile opens path as an NDJSON source of T. Malformed lines become
// failed outcomes on out; read errors are reported after fn consumed the
// source.
func readFile[T any](path string, out *ingest.OutcomeWriter, fn func(*ingest.Source[T]) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src := ingest.NewSource[T](f, ingest.SkipInvalid(out.Invalid))
	if err := fn(src); err != nil {
		return err
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func newIngestCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest an NDJSON file of records",
	}
	for _, kind := range []string{kindLimits, kindTransactions, kindArrangements} {
		var file string
		sub := &cobra.Command{
			Use:   kind,
			Short: fmt.Sprintf("Ingest %s, one JSON record per line", kind),
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return c.run(func(ctx context.Context, a *app.App) error {
					return c.ingestFile(ctx, a, kind, file)
				})
			},
		}
		sub.Flags().StringVarP(&file, "file", "f", "", "NDJSON input file")
		_ = sub.MarkFlagRequired("file")
		cmd.AddCommand(sub)
	}
	return cmd
}

func (c *cli) ingestFile(ctx context.Context, a *app.App, kind, path string) error {
	handle, err := newIngester(a, kind)
	if err != nil {
		return err
	}
	out := ingest.NewOutcomeWriter(os.Stdout)
	if err := handle(ctx, path, out); err != nil {
		return err
	}
	total, failed := out.Counts()
	c.logger.Info("ingestion finished",
		log.String("kind", kind),
		log.Int("records", total),
		log.Int("failed", failed),
	)
	return out.Err()
}
