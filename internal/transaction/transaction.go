// Package transaction defines the data model of spec.md §3: the
// Transaction input, the StatusRecord lifecycle, the DedupMarker and
// QueueEntry pointer types, and the validation rules that gate intake.
package transaction

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// State is one of the four StatusRecord states of spec.md §3. Transitions
// are monotonic: Pending -> Processing -> (Completed | Failed).
type State string

const (
	Pending    State = "PENDING"
	Processing State = "PROCESSING"
	Completed  State = "COMPLETED"
	Failed     State = "FAILED"
)

// Terminal reports whether the state is one a StatusRecord never leaves.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Transaction is the validated client input of spec.md §3.
type Transaction struct {
	ID          string         `json:"id"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Normalize assigns a fresh id and a submission timestamp when the client
// left them unset, per spec.md §4.2 steps 1-2.
func (t *Transaction) Normalize(now time.Time) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = now
	}
}

// Validate enforces the boundary behaviors of spec.md §8: positive amount,
// a currency of exactly 3 bytes (only the length is checked, not that it
// is letters or a known ISO-4217 code), description 1-255 characters.
// Violations are reported before any Store mutation happens.
func (t Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", t.Amount)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO-4217 code, got %q", t.Currency)
	}
	if n := utf8.RuneCountInString(t.Description); n < 1 || n > 255 {
		return fmt.Errorf("description must be 1-255 characters, got %d", n)
	}
	return nil
}

// StatusRecord is the per-transaction record of spec.md §3, stored under
// key status:{id}.
type StatusRecord struct {
	TransactionID string      `json:"transactionId"`
	State         State       `json:"state"`
	SubmittedAt   time.Time   `json:"submittedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Error         string      `json:"error,omitempty"`
	RetryCount    int         `json:"retryCount"`
	Payload       Transaction `json:"payload"`
}

// NewStatusRecord builds the initial PENDING record written by
// SubmissionService.submit, per spec.md §4.2 step 4.
func NewStatusRecord(payload Transaction, now time.Time) StatusRecord {
	return StatusRecord{
		TransactionID: payload.ID,
		State:         Pending,
		SubmittedAt:   now,
		RetryCount:    0,
		Payload:       payload,
	}
}

// MarkProcessing transitions PENDING -> PROCESSING in place.
func (r *StatusRecord) MarkProcessing() {
	r.State = Processing
}

// MarkCompleted transitions to the terminal COMPLETED state and sets
// CompletedAt, per invariant 5 of spec.md §3.
func (r *StatusRecord) MarkCompleted(now time.Time) {
	r.State = Completed
	r.CompletedAt = &now
}

// MarkFailed transitions to the terminal FAILED state, sets CompletedAt,
// and records the diagnostic error string of spec.md §4.3.
func (r *StatusRecord) MarkFailed(now time.Time, errMsg string) {
	r.State = Failed
	r.CompletedAt = &now
	r.Error = errMsg
}

// QueueEntry is the pointer record pushed to the queue list of spec.md §3.
// The StatusRecord, not the QueueEntry, is the authoritative payload.
type QueueEntry struct {
	TransactionID string    `json:"transactionId"`
	QueuedAt      time.Time `json:"queuedAt"`
}
