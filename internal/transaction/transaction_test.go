package transaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAssignsIDAndTimestamp(t *testing.T) {
	txn := Transaction{Amount: 10, Currency: "USD", Description: "coffee"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	txn.Normalize(now)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, now, txn.Timestamp)
}

func TestNormalizePreservesClientSuppliedValues(t *testing.T) {
	supplied := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	txn := Transaction{ID: "client-id", Timestamp: supplied}

	txn.Normalize(time.Now())

	assert.Equal(t, "client-id", txn.ID)
	assert.Equal(t, supplied, txn.Timestamp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		txn     Transaction
		wantErr bool
	}{
		{"valid", Transaction{Amount: 1, Currency: "USD", Description: "ok"}, false},
		{"zero amount", Transaction{Amount: 0, Currency: "USD", Description: "ok"}, true},
		{"negative amount", Transaction{Amount: -5, Currency: "USD", Description: "ok"}, true},
		{"short currency", Transaction{Amount: 1, Currency: "US", Description: "ok"}, true},
		{"long currency", Transaction{Amount: 1, Currency: "USDT", Description: "ok"}, true},
		{"empty description", Transaction{Amount: 1, Currency: "USD", Description: ""}, true},
		{"description at max length", Transaction{Amount: 1, Currency: "USD", Description: string(make([]byte, 255))}, false},
		{"description over max length", Transaction{Amount: 1, Currency: "USD", Description: string(make([]byte, 256))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStatusRecordLifecycle(t *testing.T) {
	now := time.Now()
	record := NewStatusRecord(Transaction{ID: "tx-1"}, now)

	assert.Equal(t, Pending, record.State)
	assert.False(t, record.State.Terminal())

	record.MarkProcessing()
	assert.Equal(t, Processing, record.State)
	assert.False(t, record.State.Terminal())

	completedAt := now.Add(time.Second)
	record.MarkCompleted(completedAt)
	assert.Equal(t, Completed, record.State)
	assert.True(t, record.State.Terminal())
	require.NotNil(t, record.CompletedAt)
	assert.Equal(t, completedAt, *record.CompletedAt)
}

func TestStatusRecordMarkFailed(t *testing.T) {
	record := NewStatusRecord(Transaction{ID: "tx-1"}, time.Now())
	record.MarkProcessing()

	failedAt := time.Now()
	record.MarkFailed(failedAt, "max retries exceeded: boom")

	assert.Equal(t, Failed, record.State)
	assert.True(t, record.State.Terminal())
	assert.Equal(t, "max retries exceeded: boom", record.Error)
}
