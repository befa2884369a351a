package transactions

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/pkg/log"
)

// QueryAPI is the part of the backend client used to read and maintain
// stored transactions.
type QueryAPI interface {
	GetTransactions(ctx context.Context, q backend.TransactionsQuery) (*backend.TransactionsPage, error)
	DeleteTransactions(ctx context.Context, items []backend.TransactionDelete) error
	PatchTransactions(ctx context.Context, items []backend.TransactionPatch) error
	RefreshTransactions(ctx context.Context, items []backend.ArrangementItem) error
}

// Queries reads, deletes, patches and refreshes stored transactions. The
// bulk operations collect their input and send it in one request; empty
// input sends nothing.
type Queries struct {
	api      QueryAPI
	validate *validator.Validate
	logger   log.Logger
}

// NewQueries creates a Queries.
func NewQueries(api QueryAPI, validate *validator.Validate, logger log.Logger) *Queries {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Queries{api: api, validate: validate, logger: logger}
}

// GetTransactions returns the transactions matching q.
func (q *Queries) GetTransactions(ctx context.Context, query backend.TransactionsQuery) ([]backend.TransactionItem, error) {
	page, err := q.api.GetTransactions(ctx, query)
	if err != nil {
		return nil, err
	}
	return page.TransactionItems, nil
}

// GetLatestTransactions returns up to size transactions of an arrangement.
// An arrangement the backend does not know yields no transactions.
func (q *Queries) GetLatestTransactions(ctx context.Context, arrangementID string, size int) ([]backend.TransactionItem, error) {
	items, err := q.GetTransactions(ctx, backend.TransactionsQuery{ArrangementID: arrangementID, Size: size})
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		q.logger.Info("no transactions found",
			log.String("arrangement_id", arrangementID),
			log.String("detail", statusErr.Body),
		)
		return nil, nil
	}
	if err != nil {
		q.logger.Error("failed to get latest transactions", log.String("arrangement_id", arrangementID), log.Err(err))
		return nil, err
	}
	return items, nil
}

// DeleteTransactions removes every item.
func (q *Queries) DeleteTransactions(ctx context.Context, items iter.Seq[backend.TransactionDelete]) error {
	batch, err := collect(ctx, q.validate, items)
	if err != nil || len(batch) == 0 {
		return err
	}
	return q.api.DeleteTransactions(ctx, batch)
}

// PatchTransactions applies category and billing status updates.
func (q *Queries) PatchTransactions(ctx context.Context, items iter.Seq[backend.TransactionPatch]) error {
	batch, err := collect(ctx, q.validate, items)
	if err != nil || len(batch) == 0 {
		return err
	}
	return q.api.PatchTransactions(ctx, batch)
}

// Refresh asks the backend to pull new transactions for the arrangements.
func (q *Queries) Refresh(ctx context.Context, items iter.Seq[backend.ArrangementItem]) error {
	batch, err := collect(ctx, q.validate, items)
	if err != nil || len(batch) == 0 {
		return err
	}
	return q.api.RefreshTransactions(ctx, batch)
}

func collect[T any](ctx context.Context, validate *validator.Validate, items iter.Seq[T]) ([]T, error) {
	batch := slices.Collect(items)
	if err := validate.VarCtx(ctx, batch, "dive"); err != nil {
		return nil, err
	}
	return batch, nil
}
