// Package posting adapts the downstream posting service contract of
// spec.md §6 behind the three capabilities the worker's delivery state
// machine needs: post, get, cleanup. The HTTP implementation is modeled on
// the teacher's internal/httputil.ServiceClient (context-aware requests,
// JSON marshaling, a body-size-capped error reader) with the
// service-to-service auth headers stripped, since this spec has no
// authentication collaborator.
package posting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/moulimds/transaction-service/internal/transaction"
)

// maxErrorBodyBytes caps how much of an error response body is read into
// memory and into logs.
const maxErrorBodyBytes = 64 << 10

// Client is the capability set spec.md §4.4 requires of the downstream
// adapter.
type Client interface {
	// Post issues a create request for transaction. success is true iff the
	// downstream responded 2xx; errMsg is populated on failure (network
	// error or non-2xx status, including the ambiguous 4xx id-exists case).
	Post(ctx context.Context, txn transaction.Transaction) (success bool, errMsg string)
	// Get checks whether the downstream already holds a record for id.
	// Any response other than 200 or 404, and any transport error, is
	// reported as not-exists, exactly like a 404; the caller cannot tell
	// these cases apart.
	Get(ctx context.Context, id string) (exists bool, data map[string]any)
	// Cleanup resets downstream state. Test support only.
	Cleanup(ctx context.Context) bool
}

// HTTPClient is the reference Client implementation: a stateless adapter
// over a base URL, safe to share across workers.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient builds a Client with the 30-second I/O timeout spec.md
// §4.4 requires on every call.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

type postPayload struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Post implements Client.Post against POST /transactions.
func (c *HTTPClient) Post(ctx context.Context, txn transaction.Transaction) (bool, string) {
	payload := postPayload{
		ID:          txn.ID,
		Amount:      txn.Amount,
		Currency:    txn.Currency,
		Description: txn.Description,
		Timestamp:   txn.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("posting service error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, ""
	}

	errBody := readLimited(resp.Body, maxErrorBodyBytes)
	return false, fmt.Sprintf("posting failed with status %d: %s", resp.StatusCode, errBody)
}

// Get implements Client.Get against GET /transactions/{id}.
func (c *HTTPClient) Get(ctx context.Context, id string) (bool, map[string]any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transactions/"+id, nil)
	if err != nil {
		return false, nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var data map[string]any
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&data); err != nil {
			return true, nil
		}
		return true, data
	case http.StatusNotFound:
		return false, nil
	default:
		// Unexpected status: reported as not-exists. No warning is
		// logged; HTTPClient holds no logger.
		return false, nil
	}
}

// Cleanup implements Client.Cleanup against POST /cleanup.
func (c *HTTPClient) Cleanup(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cleanup", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func readLimited(r io.Reader, limit int64) string {
	data, _ := io.ReadAll(io.LimitReader(r, limit))
	return string(data)
}
