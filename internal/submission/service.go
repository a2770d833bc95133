// Package submission implements the SubmissionService of spec.md §4.2: the
// synchronous intake path that validates, deduplicates, persists, and
// queues a transaction within the 100ms soft latency budget, entirely
// decoupled from the downstream posting service.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	svcerrors "github.com/moulimds/transaction-service/internal/errors"
	"github.com/moulimds/transaction-service/internal/metrics"
	"github.com/moulimds/transaction-service/internal/store"
	"github.com/moulimds/transaction-service/internal/transaction"
)

// Clock abstracts time.Now so tests can control submittedAt.
type Clock func() time.Time

// Service implements submit, getStatus, and queueDepth against a Store.
type Service struct {
	store      store.Store
	dedupTTL   time.Duration
	statusTTL  time.Duration
	queueMax   int64
	now        Clock
}

// New builds a Service backed by s. dedupTTL and statusTTL correspond to
// spec.md §3's DedupMarker and StatusRecord TTLs (corrected per
// SPEC_FULL.md §4.5 to default equal rather than dedup < status).
// queueMax is the queue_max_size backpressure threshold of spec.md §6.
func New(s store.Store, dedupTTL, statusTTL time.Duration, queueMax int64) *Service {
	return &Service{
		store:     s,
		dedupTTL:  dedupTTL,
		statusTTL: statusTTL,
		queueMax:  queueMax,
		now:       time.Now,
	}
}

// SetClock overrides the time source, for deterministic tests.
func (s *Service) SetClock(c Clock) {
	s.now = c
}

// Submit implements spec.md §4.2's submit operation.
func (s *Service) Submit(ctx context.Context, txn transaction.Transaction) (transaction.StatusRecord, error) {
	now := s.now()
	txn.Normalize(now)

	if err := txn.Validate(); err != nil {
		metrics.RecordSubmission("rejected_validation")
		return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrValidation, err)
	}

	depth, err := s.store.Length(ctx, store.QueueKey)
	if err != nil {
		metrics.RecordSubmission("rejected_store_error")
		return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}
	if depth >= s.queueMax {
		metrics.RecordSubmission("rejected_queue_full")
		return transaction.StatusRecord{}, svcerrors.ErrQueueFull
	}

	won, err := s.store.SetIfAbsentWithTTL(ctx, store.DedupKey(txn.ID), []byte("1"), s.dedupTTL)
	if err != nil {
		metrics.RecordSubmission("rejected_store_error")
		return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}
	if !won {
		// Duplicate submission: return the existing StatusRecord instead
		// of enqueueing again, per spec.md §4.2 step 3.
		metrics.RecordSubmission("duplicate")
		existing, err := s.GetStatus(ctx, txn.ID)
		if err != nil {
			return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
		}
		return existing, nil
	}

	record := transaction.NewStatusRecord(txn, now)
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return transaction.StatusRecord{}, fmt.Errorf("marshal status record: %w", err)
	}
	if err := s.store.Set(ctx, store.StatusKey(txn.ID), recordBytes, s.statusTTL); err != nil {
		metrics.RecordSubmission("rejected_store_error")
		return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}
	if err := s.store.AddToSet(ctx, store.TrackedSetKey, txn.ID); err != nil {
		// Non-fatal: the reconciliation sweep is a safety net, not the
		// primary delivery path, so a tracking failure here doesn't block
		// intake.
		metrics.RecordSubmission("tracking_failed")
	}

	entry := transaction.QueueEntry{TransactionID: txn.ID, QueuedAt: now}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return transaction.StatusRecord{}, fmt.Errorf("marshal queue entry: %w", err)
	}
	if err := s.store.Push(ctx, store.QueueKey, entryBytes); err != nil {
		// Stranded transaction: status exists, not queued. Accepted per
		// spec.md §4.2's edge-case note; the reconciliation sweep of
		// SPEC_FULL.md §4.5 recovers it once submittedAt grows stale.
		metrics.RecordSubmission("stranded")
		return record, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}

	metrics.RecordSubmission("accepted")
	return record, nil
}

// GetStatus implements spec.md §4.2's getStatus operation.
func (s *Service) GetStatus(ctx context.Context, id string) (transaction.StatusRecord, error) {
	data, err := s.store.Get(ctx, store.StatusKey(id))
	if err != nil {
		if err == store.ErrNotFound {
			return transaction.StatusRecord{}, svcerrors.ErrNotFound
		}
		return transaction.StatusRecord{}, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}

	var record transaction.StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return transaction.StatusRecord{}, fmt.Errorf("parse status record: %w", err)
	}
	return record, nil
}

// QueueDepth implements spec.md §4.2's queueDepth operation.
func (s *Service) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := s.store.Length(ctx, store.QueueKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", svcerrors.ErrStoreUnavailable, err)
	}
	metrics.SetQueueDepth(depth)
	return depth, nil
}
