package main

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bft-labs/streamworker/internal/app"
	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/internal/ingest"
	"github.com/bft-labs/streamworker/internal/transactions"
	"github.com/bft-labs/streamworker/pkg/log"
)

func newTransactionsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Query and maintain stored transactions",
	}

	var arrangement string
	var size int
	latest := &cobra.Command{
		Use:   "latest",
		Short: "Print the latest transactions of an arrangement as NDJSON",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.run(func(ctx context.Context, a *app.App) error {
				items, err := a.TransactionQueries().GetLatestTransactions(ctx, arrangement, size)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				for _, item := range items {
					if err := enc.Encode(item); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	latest.Flags().StringVar(&arrangement, "arrangement", "", "arrangement id")
	latest.Flags().IntVar(&size, "size", 10, "number of transactions")
	_ = latest.MarkFlagRequired("arrangement")

	cmd.AddCommand(
		latest,
		newBulkCommand(c, "delete", "Delete transactions listed in an NDJSON file",
			func(ctx context.Context, q *transactions.Queries, items iter.Seq[backend.TransactionDelete]) error {
				return q.DeleteTransactions(ctx, items)
			}),
		newBulkCommand(c, "patch", "Update categories and billing statuses from an NDJSON file",
			func(ctx context.Context, q *transactions.Queries, items iter.Seq[backend.TransactionPatch]) error {
				return q.PatchTransactions(ctx, items)
			}),
		newBulkCommand(c, "refresh", "Refresh transactions of the arrangements in an NDJSON file",
			func(ctx context.Context, q *transactions.Queries, items iter.Seq[backend.ArrangementItem]) error {
				return q.Refresh(ctx, items)
			}),
	)
	return cmd
}

// newBulkCommand builds a command sending every record of a file in one
// request. A malformed line aborts before anything is sent.
func newBulkCommand[T any](c *cli, use, short string, send func(context.Context, *transactions.Queries, iter.Seq[T]) error) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			items, err := readAll[T](file)
			if err != nil {
				return err
			}
			return c.run(func(ctx context.Context, a *app.App) error {
				if err := send(ctx, a.TransactionQueries(), slices.Values(items)); err != nil {
					return err
				}
				c.logger.Info("transactions "+use+" finished", log.Int("records", len(items)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "NDJSON input file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readAll[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src := ingest.NewSource[T](f)
	items := slices.Collect(src.All())
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}
