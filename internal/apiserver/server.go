// Package apiserver wires the gin HTTP API of spec.md §6: the synchronous
// submission endpoint, the status lookup, a health check that reports
// queue depth, error rate, uptime, and worker status, and the Prometheus
// scrape endpoint. Modeled on the teacher's cmd/coordinator HTTP wiring
// (gin.Engine, grouped routes, middleware chain of recovery -> logging ->
// rate limiting), with the response/health shapes grounded on
// original_source/app/models.py's TransactionResponse and HealthResponse.
package apiserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	svcerrors "github.com/moulimds/transaction-service/internal/errors"
	"github.com/moulimds/transaction-service/internal/metrics"
	"github.com/moulimds/transaction-service/internal/middleware"
	"github.com/moulimds/transaction-service/internal/store"
	"github.com/moulimds/transaction-service/internal/submission"
	"github.com/moulimds/transaction-service/internal/transaction"
)

// workerStatus is satisfied by *worker.Pool; kept as a narrow interface
// here rather than importing internal/worker directly so apiserver only
// depends on the one method it actually calls.
type workerStatus interface {
	Status() map[string]any
}

// Server wraps the gin engine and an http.Server bound to it, conforming
// to lifecycle.Component so cmd/server can start and stop it alongside
// the Store, the worker pool, and the reconciliation sweep.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	addr       string
	logger     zerolog.Logger
}

// Deps is every collaborator the HTTP layer dispatches to.
type Deps struct {
	Submission  *submission.Service
	Store       store.Store
	Logger      zerolog.Logger
	RateLimiter *middleware.RateLimiter
	Workers     workerStatus
	// ResponseTimeout is the response_timeout_ms budget of spec.md §6,
	// enforced as a per-request context.WithTimeout. Zero disables it.
	ResponseTimeout time.Duration
	Addr            string
}

// New builds a Server with the route table of spec.md §6.
func New(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if deps.ResponseTimeout > 0 {
		engine.Use(middleware.ResponseTimeout(deps.ResponseTimeout))
	}
	engine.Use(metrics.GinMiddleware())
	engine.Use(middleware.RequestLogger(deps.Logger))
	if deps.RateLimiter != nil {
		engine.Use(deps.RateLimiter.Handler())
	}

	h := &handlers{submission: deps.Submission, store: deps.Store, workers: deps.Workers}

	api := engine.Group("/api")
	api.POST("/transactions", h.submitTransaction)
	api.GET("/transactions/:id", h.getTransaction)
	api.GET("/health", h.health)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		engine: engine,
		addr:   deps.Addr,
		logger: deps.Logger,
		httpServer: &http.Server{
			Addr:    deps.Addr,
			Handler: engine,
		},
	}
}

// Initialize implements lifecycle.Component: it starts serving in a
// background goroutine and returns immediately, mirroring the teacher's
// non-blocking cmd/coordinator server startup so Initialize never stalls
// the rest of the registry's startup sequence.
func (s *Server) Initialize(ctx context.Context) error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped unexpectedly")
		}
	}()
	return nil
}

// Shutdown implements lifecycle.Component: it drains in-flight requests
// within ctx's deadline, per the graceful-shutdown requirement of spec.md
// §5.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Health implements lifecycle.Component. The HTTP server has nothing
// further to probe beyond being able to accept connections, which its own
// /api/health route already exercises end to end.
func (s *Server) Health(ctx context.Context) error {
	return nil
}

type handlers struct {
	submission *submission.Service
	store      store.Store
	workers    workerStatus
}

type submitRequest struct {
	ID          string         `json:"id"`
	Amount      float64        `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// transactionResponse is the public view of a StatusRecord returned by
// both POST /api/transactions and GET /api/transactions/:id, matching
// original_source/app/models.py's TransactionResponse field-for-field
// (transactionId, status, submittedAt, completedAt, error) rather than
// the internal StatusRecord's own shape (which also carries retryCount
// and the full Payload, neither of which is part of the public contract).
type transactionResponse struct {
	TransactionID string            `json:"transactionId"`
	Status        transaction.State `json:"status"`
	SubmittedAt   time.Time         `json:"submittedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func toResponse(r transaction.StatusRecord) transactionResponse {
	return transactionResponse{
		TransactionID: r.TransactionID,
		Status:        r.State,
		SubmittedAt:   r.SubmittedAt,
		CompletedAt:   r.CompletedAt,
		Error:         r.Error,
	}
}

// submitTransaction implements POST /api/transactions of spec.md §6.
func (h *handlers) submitTransaction(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	txn := transaction.Transaction{
		ID:          req.ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Timestamp:   req.Timestamp,
		Metadata:    req.Metadata,
	}

	record, err := h.submission.Submit(c.Request.Context(), txn)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toResponse(record))
	case errors.Is(err, svcerrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, svcerrors.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, svcerrors.ErrStoreUnavailable):
		// Submit may still return a usable record alongside this error in
		// the stranded-push edge case; surface it so the client has the
		// transaction id to poll on, per spec.md §4.2's edge-case note.
		if record.TransactionID != "" {
			c.JSON(http.StatusOK, toResponse(record))
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// getTransaction implements GET /api/transactions/:id of spec.md §6.
func (h *handlers) getTransaction(c *gin.Context) {
	id := c.Param("id")
	record, err := h.submission.GetStatus(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toResponse(record))
	case errors.Is(err, svcerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

// health implements GET /api/health of spec.md §6: store reachability,
// queue depth, error rate, process uptime, and worker status, matching
// original_source/app/models.py's HealthResponse field-for-field (the
// original left error_rate, uptime, and worker_status as TODO stubs; this
// implementation actually tracks them via internal/metrics and the
// WorkerPool).
func (h *handlers) health(c *gin.Context) {
	ctx := c.Request.Context()

	storeHealthy := true
	if err := h.store.Health(ctx); err != nil {
		storeHealthy = false
	}

	depth, err := h.submission.QueueDepth(ctx)
	if err != nil {
		depth = -1
	}

	status := http.StatusOK
	if !storeHealthy {
		status = http.StatusServiceUnavailable
	}

	var workers map[string]any
	if h.workers != nil {
		workers = h.workers.Status()
	}

	c.JSON(status, gin.H{
		"status":        map[bool]string{true: "ok", false: "degraded"}[storeHealthy],
		"queue_depth":   depth,
		"error_rate":    metrics.ErrorRate(),
		"uptime":        metrics.Uptime().Seconds(),
		"worker_status": workers,
	})
}
