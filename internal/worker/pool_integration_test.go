package worker

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/moulimds/transaction-service/internal/posting"
	"github.com/moulimds/transaction-service/internal/posting/mockserver"
	"github.com/moulimds/transaction-service/internal/store"
	"github.com/moulimds/transaction-service/internal/submission"
	"github.com/moulimds/transaction-service/internal/transaction"
)

// TestPoolDeliversThroughMockPostingService exercises the full submit ->
// queue -> deliver path against a real HTTP server (internal/posting's
// HTTPClient talking to internal/posting/mockserver), the only point
// where these three packages are wired together end to end.
func TestPoolDeliversThroughMockPostingService(t *testing.T) {
	mock := mockserver.New()
	server := httptest.NewServer(mock.Handler())
	defer server.Close()

	s := store.NewMemoryStore()
	submissionSvc := submission.New(s, time.Hour, time.Hour, 100)
	client := posting.NewHTTPClient(server.URL)
	pool := New(s, client, zerolog.Nop(), Config{
		Concurrency:  2,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
		StatusTTL:    time.Hour,
		RecheckDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Initialize(ctx))
	defer pool.Shutdown(context.Background())

	record, err := submissionSvc.Submit(ctx, transaction.Transaction{Amount: 25, Currency: "USD", Description: "end-to-end"})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := submissionSvc.GetStatus(ctx, record.TransactionID)
		require.NoError(t, err)
		if status.State.Terminal() {
			require.Equal(t, transaction.Completed, status.State)
			require.Equal(t, 1, mock.Count())
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transaction did not reach a terminal state in time")
}

func TestPoolRetriesAfterDownstreamFailureThenDelivers(t *testing.T) {
	mock := mockserver.New()
	server := httptest.NewServer(mock.Handler())
	defer server.Close()
	mock.FailNextPost(true)

	s := store.NewMemoryStore()
	submissionSvc := submission.New(s, time.Hour, time.Hour, 100)
	client := posting.NewHTTPClient(server.URL)
	pool := New(s, client, zerolog.Nop(), Config{
		Concurrency:  1,
		MaxRetries:   3,
		RetryDelay:   time.Millisecond,
		StatusTTL:    time.Hour,
		RecheckDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Initialize(ctx))
	defer pool.Shutdown(context.Background())

	record, err := submissionSvc.Submit(ctx, transaction.Transaction{Amount: 25, Currency: "USD", Description: "retry-then-succeed"})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := submissionSvc.GetStatus(ctx, record.TransactionID)
		require.NoError(t, err)
		if status.State.Terminal() {
			require.Equal(t, transaction.Completed, status.State)
			require.Equal(t, 1, status.RetryCount)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transaction did not reach a terminal state in time")
}
