// Package worker implements the WorkerPool of spec.md §4.3: a fixed set of
// goroutines that drain the work queue and drive each transaction through
// the delivery state machine against the posting service, with retry and
// backoff on transient failure. Grounded on the teacher's
// services/common.RequestPoller (claim → handler dispatch → complete/fail,
// a registered-handler-less single operation here) and its cmd/coordinator
// worker-goroutine shutdown pattern, generalized from Supabase ticker
// polling to a Redis-backed blocking pop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/moulimds/transaction-service/internal/logging"
	"github.com/moulimds/transaction-service/internal/metrics"
	"github.com/moulimds/transaction-service/internal/posting"
	"github.com/moulimds/transaction-service/internal/store"
	"github.com/moulimds/transaction-service/internal/transaction"
)

// Pool runs Concurrency workers that pop from the queue and deliver each
// transaction to the posting service, per spec.md §4.3.
type Pool struct {
	store   store.Store
	posting posting.Client
	logger  zerolog.Logger

	concurrency  int
	maxRetries   int
	retryDelay   time.Duration
	recheckDelay time.Duration

	statusTTL time.Duration

	active int64 // atomic: workers currently delivering a transaction

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Config holds the tunables of spec.md §6 that govern worker behavior.
type Config struct {
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	StatusTTL   time.Duration
	// RecheckDelay is how long to wait before the RECHECK_EXISTS probe
	// after a failed POST, giving an in-flight write a chance to land.
	// Defaults to one second if zero.
	RecheckDelay time.Duration
}

// New builds a Pool. s and p are the shared Store and PostingClient; logger
// is the base logger workers derive per-iteration trace-scoped loggers from.
func New(s store.Store, p posting.Client, logger zerolog.Logger, cfg Config) *Pool {
	recheckDelay := cfg.RecheckDelay
	if recheckDelay == 0 {
		recheckDelay = time.Second
	}
	return &Pool{
		store:        s,
		posting:      p,
		logger:       logger,
		concurrency:  cfg.Concurrency,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		recheckDelay: recheckDelay,
		statusTTL:    cfg.StatusTTL,
		stopCh:       make(chan struct{}),
	}
}

// Initialize implements lifecycle.Component: it launches Concurrency
// worker goroutines and returns immediately. Workers run until ctx is
// canceled or Shutdown is called.
func (p *Pool) Initialize(ctx context.Context) error {
	for i := 0; i < p.concurrency; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go p.runWorker(ctx, workerID)
	}
	return nil
}

// Shutdown implements lifecycle.Component: it signals every worker to
// exit and waits for them to drain their current iteration. Safe to call
// multiple times.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	return nil
}

// Health implements lifecycle.Component. The pool has no externally
// observable readiness signal beyond its goroutines being alive, which
// Shutdown's WaitGroup already tracks; it is always reported healthy.
func (p *Pool) Health(ctx context.Context) error {
	return nil
}

// Status reports the pool's size and how many workers are currently
// delivering a transaction, for the /api/health endpoint's worker_status
// field.
func (p *Pool) Status() map[string]any {
	return map[string]any{
		"concurrency":    p.concurrency,
		"active_workers": int(atomic.LoadInt64(&p.active)),
	}
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	defer p.wg.Done()
	logger := p.logger.With().Str("worker_id", workerID).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		p.runIterationRecovered(ctx, workerID, logger)
	}
}

// runIterationRecovered wraps one popBlocking-to-terminal-state cycle with
// panic recovery: a single malformed entry or client panic must never take
// the worker down, per spec.md §4.3's "workers never crash the pool".
func (p *Pool) runIterationRecovered(ctx context.Context, workerID string, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("worker iteration panicked, recovering")
			time.Sleep(time.Second)
		}
	}()
	p.runIteration(ctx, workerID, logger)
}

func (p *Pool) runIteration(ctx context.Context, workerID string, logger zerolog.Logger) {
	entryBytes, ok, err := p.store.PopBlocking(ctx, store.QueueKey, time.Second)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("popBlocking failed")
		time.Sleep(time.Second)
		return
	}
	if !ok {
		return
	}

	var entry transaction.QueueEntry
	if err := json.Unmarshal(entryBytes, &entry); err != nil {
		logger.Error().Err(err).Msg("discarding malformed queue entry")
		return
	}

	traceID := logging.NewTraceID()
	ctx = logging.WithTraceID(ctx, traceID)
	itemLogger := logging.FromContext(ctx, logger).With().Str("transaction_id", entry.TransactionID).Logger()

	start := time.Now()
	record, err := p.loadStatus(ctx, entry.TransactionID)
	if err != nil {
		itemLogger.Error().Err(err).Msg("status record missing for queued entry")
		return
	}
	if record.State.Terminal() {
		// Already resolved by a prior delivery (a duplicate entry, such as
		// one pushed by the reconciliation sweep); drop it.
		return
	}

	record.MarkProcessing()
	p.saveStatus(ctx, record, itemLogger)

	atomic.AddInt64(&p.active, 1)
	p.deliver(ctx, workerID, &record, itemLogger)
	atomic.AddInt64(&p.active, -1)

	p.saveStatus(ctx, record, itemLogger)
	if record.State.Terminal() {
		if err := p.store.RemoveFromSet(ctx, store.TrackedSetKey, record.TransactionID); err != nil {
			itemLogger.Error().Err(err).Msg("untrack completed transaction")
		}
	}
	metrics.RecordDeliveryOutcome(strings.ToLower(string(record.State)), time.Since(start))
}

// deliver runs the CHECK_EXISTS -> POST -> RECHECK_EXISTS -> retry state
// machine of spec.md §4.3 against the posting service, mutating record in
// place to its terminal state.
func (p *Pool) deliver(ctx context.Context, workerID string, record *transaction.StatusRecord, logger zerolog.Logger) {
	// Resume from record.RetryCount rather than 0: a record requeued by the
	// reconciliation sweep after a worker died mid-backoff already carries
	// its prior attempt count, and re-zeroing it here would let a resumed
	// delivery exceed maxRetries in violation of spec.md §4.3.
	for attempt := record.RetryCount; ; attempt++ {
		if exists, data := p.posting.Get(ctx, record.TransactionID); exists {
			logger.Info().Interface("existing", data).Msg("transaction already posted, short-circuiting")
			record.MarkCompleted(time.Now())
			return
		}

		success, errMsg := p.posting.Post(ctx, record.Payload)
		if success {
			record.MarkCompleted(time.Now())
			return
		}

		// A write failure might still have landed downstream; re-probe
		// before counting it as a real failure, per spec.md §4.3's
		// RECHECK_EXISTS step.
		time.Sleep(p.recheckDelay)
		if exists, _ := p.posting.Get(ctx, record.TransactionID); exists {
			record.MarkCompleted(time.Now())
			return
		}

		if attempt >= p.maxRetries {
			record.MarkFailed(time.Now(), fmt.Sprintf("max retries exceeded: %s", errMsg))
			return
		}

		metrics.RecordRetry(workerID)
		record.RetryCount++
		backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
		logger.Warn().Str("error", errMsg).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("delivery failed, retrying")

		select {
		case <-ctx.Done():
			record.MarkFailed(time.Now(), "canceled during retry backoff")
			return
		case <-time.After(backoff):
		}
	}
}

func (p *Pool) loadStatus(ctx context.Context, id string) (transaction.StatusRecord, error) {
	data, err := p.store.Get(ctx, store.StatusKey(id))
	if err != nil {
		return transaction.StatusRecord{}, err
	}
	var record transaction.StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return transaction.StatusRecord{}, fmt.Errorf("parse status record: %w", err)
	}
	return record, nil
}

func (p *Pool) saveStatus(ctx context.Context, record transaction.StatusRecord, logger zerolog.Logger) {
	data, err := json.Marshal(record)
	if err != nil {
		logger.Error().Err(err).Msg("marshal status record")
		return
	}
	if err := p.store.Set(ctx, store.StatusKey(record.TransactionID), data, p.statusTTL); err != nil {
		logger.Error().Err(err).Msg("persist status record")
	}
}
