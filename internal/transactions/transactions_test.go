package transactions

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/streamworker/internal/backend"
	"github.com/bft-labs/streamworker/pkg/repository/memory"
	"github.com/bft-labs/streamworker/pkg/task"
	"github.com/bft-labs/streamworker/pkg/worker"
)

type fakeAPI struct {
	mu     sync.Mutex
	posted int
	reject string
}

func (f *fakeAPI) PostTransactions(_ context.Context, txs []backend.Transaction) ([]backend.TransactionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted++
	if txs[0].ArrangementID == f.reject {
		return nil, &backend.StatusError{StatusCode: 400, Body: `{"message":"arrangement closed"}`}
	}
	ids := make([]backend.TransactionID, len(txs))
	for i, tx := range txs {
		ids[i] = backend.TransactionID{ID: "id-" + tx.ExternalID, ExternalID: tx.ExternalID}
	}
	return ids, nil
}

func tx(arrangement string, n int) backend.Transaction {
	return backend.Transaction{
		ExternalID:           fmt.Sprintf("%s-%d", arrangement, n),
		ArrangementID:        arrangement,
		BookingDate:          "2024-02-29",
		Amount:               backend.Amount{Amount: "12.50", CurrencyCode: "EUR"},
		CreditDebitIndicator: "DBIT",
	}
}

func TestExecutor_Success(t *testing.T) {
	e := NewExecutor(&fakeAPI{}, validator.New(), nil)
	tk := NewTask("transactions-1-acc", "transactions-1", []backend.Transaction{tx("acc", 1), tx("acc", 2)})

	_, err := e.ExecuteTask(context.Background(), tk)
	require.NoError(t, err)

	ids, ok := tk.Response()
	require.True(t, ok)
	assert.Len(t, ids, 2)
	ev := tk.Events()[0]
	assert.Equal(t, task.StatusSuccess, ev.Status)
	assert.Equal(t, "acc-1,acc-2", ev.Key)
	assert.Equal(t, "id-acc-1,id-acc-2", ev.Data)
}

func TestExecutor_StatusErrorBodyInMessage(t *testing.T) {
	e := NewExecutor(&fakeAPI{reject: "closed"}, validator.New(), nil)
	tk := NewTask("transactions-1-closed", "transactions-1", []backend.Transaction{tx("closed", 1)})

	_, err := e.ExecuteTask(context.Background(), tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arrangement closed")
	assert.Equal(t, `{"message":"arrangement closed"}`, tk.Events()[0].ErrorDetail)
}

func TestExecutor_Validation(t *testing.T) {
	tests := []struct {
		name  string
		batch []backend.Transaction
	}{
		{"empty batch", nil},
		{"missing arrangement", []backend.Transaction{{ExternalID: "x", BookingDate: "2024-01-01", Amount: backend.Amount{Amount: "1", CurrencyCode: "EUR"}, CreditDebitIndicator: "CRDT"}}},
		{"bad indicator", []backend.Transaction{func() backend.Transaction { t := tx("acc", 1); t.CreditDebitIndicator = "X"; return t }()}},
		{"bad amount", []backend.Transaction{func() backend.Transaction { t := tx("acc", 1); t.Amount.Amount = "ten"; return t }()}},
		{"bad date", []backend.Transaction{func() backend.Transaction { t := tx("acc", 1); t.BookingDate = "29/02/2024"; return t }()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			e := NewExecutor(api, validator.New(), nil)
			tk := NewTask("id", "uow", tt.batch)

			_, err := e.ExecuteTask(context.Background(), tk)
			require.Error(t, err)
			assert.Equal(t, 0, api.posted)
			assert.Equal(t, task.StateFailed, tk.State())
		})
	}
}

func TestService_ProcessTransactions(t *testing.T) {
	api := &fakeAPI{reject: "closed"}
	svc, err := NewService(2, memory.New[*Task](), NewExecutor(api, validator.New(), nil), worker.DefaultRunnerConfig(), nil)
	require.NoError(t, err)

	batches := [][]backend.Transaction{
		{tx("a", 1), tx("a", 2)},
		{tx("closed", 1)},
		{tx("b", 1)},
	}
	var mu sync.Mutex
	var results []worker.Result[*Task]
	err = svc.ProcessTransactions(context.Background(), slices.Values(batches), func(r worker.Result[*Task]) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := IDs(results...)
	got := make([]string, 0, len(ids))
	for _, id := range ids {
		got = append(got, id.ID)
	}
	assert.ElementsMatch(t, []string{"id-a-1", "id-a-2", "id-b-1"}, got)
}
