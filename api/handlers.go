/*
handlers.go - HTTP API handlers for the rewards engine

PURPOSE:
  Exposes the rewards engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine. Publishes ledger
  events after successful persistence.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                  List accounts
    POST   /api/accounts                  Create account
    GET    /api/accounts/{id}             Get account
    GET    /api/accounts/{id}/status      Balance snapshot
    GET    /api/accounts/{id}/history     Ledger, most recent first

  Operations:
    POST   /api/accounts/{id}/earn        Award points
    POST   /api/accounts/{id}/redeem      Convert points to cash
    POST   /api/accounts/{id}/restore     Reverse a redemption
    POST   /api/accounts/{id}/reset       Zero everything (admin/test)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Account not found
  - 409: Duplicate account, concurrent modification
  - 422: Business-rule rejection (not enough points, no matching redemption)
  - 500: Storage failures

SECURITY NOTE:
  Authentication is performed by the identity provider in front of this
  service; handlers trust the account id in the path.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/vivarx/rewards-engine/events"
	"github.com/vivarx/rewards-engine/rewards"
)

// =============================================================================
// METRICS
// =============================================================================

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_operations_total",
		Help: "Total rewards operations processed, labeled by outcome",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_operation_duration_seconds",
		Help:    "Latency distribution of rewards operations",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})
)

func observe(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case rewards.IsClientError(err) || rewards.IsNotFound(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *rewards.Engine
	Store    rewards.Store
	Notifier events.Notifier
}

// NewHandler creates a new handler. notifier may be nil.
func NewHandler(engine *rewards.Engine, store rewards.Store, notifier events.Notifier) *Handler {
	if notifier == nil {
		notifier = events.NewManager()
	}
	return &Handler{Engine: engine, Store: store, Notifier: notifier}
}

func (h *Handler) publish(r *http.Request, t events.Type, accountID rewards.AccountID, payload any) {
	event := events.Event{
		Type:      t,
		AccountID: string(accountID),
		At:        time.Now().UTC(),
		Payload:   payload,
	}
	if err := h.Notifier.Publish(r.Context(), event); err != nil {
		// Delivery is best-effort; the ledger change already committed.
		log.Printf("event publish failed: %v", err)
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account with zero balances.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	account := rewards.NewAccount(rewards.AccountID(req.ID), req.Name, req.Email, h.Engine.Config())
	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		writeEngineError(w, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := rewards.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.LoadAccount(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// =============================================================================
// STATUS & HISTORY
// =============================================================================

// GetStatus returns the balance snapshot.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := rewards.AccountID(chi.URLParam(r, "id"))

	summary, err := h.Engine.Status(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get status", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(summary))
}

// GetHistory returns ledger entries, most recent first.
// Query param "limit" caps the result.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := rewards.AccountID(chi.URLParam(r, "id"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Engine.History(r.Context(), id, limit)
	if err != nil {
		writeEngineError(w, "Failed to get history", err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OPERATION HANDLERS
// =============================================================================

// EarnPoints awards points for a purchase or action.
func (h *Handler) EarnPoints(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues("earn"))
	defer timer.ObserveDuration()

	id := rewards.AccountID(chi.URLParam(r, "id"))

	var req EarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observe("earn", rewards.ErrInvalidInput)
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.EarnPoints(r.Context(), id, rewards.EarnInput{
		RawPoints: decimal.NewFromFloat(req.Points),
		Source:    req.Source,
		Test:      req.Test,
	})
	observe("earn", err)
	if err != nil {
		writeEngineError(w, "Failed to earn points", err)
		return
	}

	h.publish(r, events.PointsUpdated, id, toStatusDTO(&result.Summary))
	writeJSON(w, http.StatusOK, EarnResponseDTO{
		StatusDTO:      toStatusDTO(&result.Summary),
		RawPoints:      result.RawPoints.InexactFloat64(),
		AdjustedPoints: result.AdjustedPoints,
		Multiplier:     result.Multiplier.InexactFloat64(),
		TierChanged:    result.TierChanged,
		PreviousTier:   result.PreviousTier,
	})
}

// Redeem converts unlocked points to cash.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues("redeem"))
	defer timer.ObserveDuration()

	id := rewards.AccountID(chi.URLParam(r, "id"))

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observe("redeem", rewards.ErrInvalidInput)
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Redeem(r.Context(), id, decimal.NewFromFloat(req.Amount))
	observe("redeem", err)
	if err != nil {
		writeEngineError(w, "Failed to redeem reward", err)
		return
	}

	h.publish(r, events.RewardRedeemed, id, toStatusDTO(&result.Summary))
	writeJSON(w, http.StatusOK, RedeemResponseDTO{
		StatusDTO:      toStatusDTO(&result.Summary),
		RedeemedAmount: result.RedeemedAmount.InexactFloat64(),
		PointsUsed:     result.PointsUsed,
		EntryID:        string(result.EntryID),
	})
}

// Restore reverses a prior redemption.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(operationDuration.WithLabelValues("restore"))
	defer timer.ObserveDuration()

	id := rewards.AccountID(chi.URLParam(r, "id"))

	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observe("restore", rewards.ErrInvalidInput)
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.Restore(r.Context(), id,
		decimal.NewFromFloat(req.Amount), rewards.EntryID(req.EntryID))
	observe("restore", err)
	if err != nil {
		writeEngineError(w, "Failed to restore reward", err)
		return
	}

	h.publish(r, events.RewardRestored, id, toStatusDTO(&result.Summary))
	writeJSON(w, http.StatusOK, RestoreResponseDTO{
		StatusDTO:      toStatusDTO(&result.Summary),
		RestoredAmount: result.RestoredAmount.InexactFloat64(),
		PointsRestored: result.PointsRestored,
		RestoredEntry:  string(result.RestoredEntry),
	})
}

// Reset zeroes all reward fields and clears history. Admin/test only.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id := rewards.AccountID(chi.URLParam(r, "id"))

	summary, err := h.Engine.Reset(r.Context(), id)
	observe("reset", err)
	if err != nil {
		writeEngineError(w, "Failed to reset account", err)
		return
	}

	h.publish(r, events.PointsReset, id, toStatusDTO(summary))
	writeJSON(w, http.StatusOK, toStatusDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case rewards.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Account not found", err)
	case errors.Is(err, rewards.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, rewards.ErrAccountExists):
		writeError(w, http.StatusConflict, message, err)
	case rewards.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case rewards.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
