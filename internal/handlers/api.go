package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"spendbook/internal/analytics"
	"spendbook/internal/logger"
	"spendbook/internal/middleware"
	"spendbook/internal/storage"
)

// MaxPageSize caps ?limit= on /api/expenses.
const MaxPageSize = 1000

// APIExpenses returns the current user's expenses as a JSON array.
func (h *Handlers) APIExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	opts, err := parseListOptions(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.db.ListExpenses(r.Context(), user.ID, opts)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("ListExpenses failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expenses")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, expenses)
}

// APIAnalytics returns the current user's spending summary as JSON.
func (h *Handlers) APIAnalytics(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	dateRange, err := parseDateRange(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := h.expensesInRange(r.Context(), user.ID, dateRange)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Loading expenses for analytics failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load analytics")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, analytics.Summarize(expenses))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports whether the database answers a trivial query.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if !h.db.Ping(ctx) {
		logger.FromContext(r.Context()).Warn().Msg("Health check: database unreachable")
		middleware.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Database: "disconnected"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Database: "connected"})
}

type invalidQueryError string

func (e invalidQueryError) Error() string { return string(e) }

func parseListOptions(r *http.Request) (storage.ListOptions, error) {
	var opts storage.ListOptions
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, invalidQueryError("limit must be a non-negative integer")
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, invalidQueryError("offset must be a non-negative integer")
		}
		opts.Offset = n
	}
	return opts, nil
}
