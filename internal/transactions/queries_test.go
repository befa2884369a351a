package transactions

import (
	"context"
	"net/http"
	"slices"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/internal/backend"
)

type fakeQueryAPI struct {
	getErr    error
	query     backend.TransactionsQuery
	deleted   []backend.TransactionDelete
	patched   []backend.TransactionPatch
	refreshed []backend.ArrangementItem
	calls     int
}

func (f *fakeQueryAPI) GetTransactions(_ context.Context, q backend.TransactionsQuery) (*backend.TransactionsPage, error) {
	f.calls++
	f.query = q
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &backend.TransactionsPage{
		TransactionItems: []backend.TransactionItem{{ID: "t-1", Transaction: tx(q.ArrangementID, 1)}},
		TotalElements:    1,
	}, nil
}

func (f *fakeQueryAPI) DeleteTransactions(_ context.Context, items []backend.TransactionDelete) error {
	f.calls++
	f.deleted = items
	return nil
}

func (f *fakeQueryAPI) PatchTransactions(_ context.Context, items []backend.TransactionPatch) error {
	f.calls++
	f.patched = items
	return nil
}

func (f *fakeQueryAPI) RefreshTransactions(_ context.Context, items []backend.ArrangementItem) error {
	f.calls++
	f.refreshed = items
	return nil
}

func TestQueries_GetLatestTransactions(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		api := &fakeQueryAPI{}
		items, err := NewQueries(api, validator.New(), nil).GetLatestTransactions(context.Background(), "acc", 5)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "t-1", items[0].ID)
		assert.Equal(t, backend.TransactionsQuery{ArrangementID: "acc", Size: 5}, api.query)
	})

	t.Run("not found is empty", func(t *testing.T) {
		api := &fakeQueryAPI{getErr: &backend.StatusError{StatusCode: http.StatusNotFound, Body: "unknown arrangement"}}
		items, err := NewQueries(api, validator.New(), nil).GetLatestTransactions(context.Background(), "gone", 5)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("other errors surface", func(t *testing.T) {
		api := &fakeQueryAPI{getErr: &backend.StatusError{StatusCode: http.StatusBadGateway}}
		_, err := NewQueries(api, validator.New(), nil).GetLatestTransactions(context.Background(), "acc", 5)
		var statusErr *backend.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	})
}

func TestQueries_BulkOperations(t *testing.T) {
	api := &fakeQueryAPI{}
	q := NewQueries(api, validator.New(), nil)
	ctx := context.Background()

	require.NoError(t, q.DeleteTransactions(ctx, slices.Values([]backend.TransactionDelete{{ExternalID: "x-1"}, {ID: "t-2"}})))
	require.NoError(t, q.PatchTransactions(ctx, slices.Values([]backend.TransactionPatch{{ID: "t-1", BillingStatus: "BILLED"}})))
	require.NoError(t, q.Refresh(ctx, slices.Values([]backend.ArrangementItem{{ArrangementID: "acc"}})))

	assert.Equal(t, 3, api.calls)
	assert.Len(t, api.deleted, 2)
	assert.Equal(t, "BILLED", api.patched[0].BillingStatus)
	assert.Equal(t, "acc", api.refreshed[0].ArrangementID)
}

func TestQueries_BulkOperationsSkipEmptyAndInvalid(t *testing.T) {
	api := &fakeQueryAPI{}
	q := NewQueries(api, validator.New(), nil)
	ctx := context.Background()

	require.NoError(t, q.DeleteTransactions(ctx, slices.Values([]backend.TransactionDelete(nil))))
	require.Error(t, q.DeleteTransactions(ctx, slices.Values([]backend.TransactionDelete{{}})))
	require.Error(t, q.PatchTransactions(ctx, slices.Values([]backend.TransactionPatch{{Category: "rent"}})))
	require.Error(t, q.Refresh(ctx, slices.Values([]backend.ArrangementItem{{}})))
	assert.Equal(t, 0, api.calls)
}
