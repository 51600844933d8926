package handlers

import (
	"context"
	"net/http"
	"time"

	"spendbook/internal/analytics"
	"spendbook/internal/logger"
	"spendbook/internal/models"
	"spendbook/internal/storage"
)

// Bounds substituted for an omitted start or end date.
const (
	earliestDate = "0001-01-01"
	latestDate   = "9999-12-31"
)

type invalidRangeError string

func (e invalidRangeError) Error() string { return string(e) }

// DateRange is an optional inclusive filter on expense dates.
type DateRange struct {
	Start string
	End   string
}

// IsSet reports whether either bound was given.
func (d DateRange) IsSet() bool {
	return d.Start != "" || d.End != ""
}

// parseDateRange reads ?start= and ?end=. Both are optional.
func parseDateRange(r *http.Request) (DateRange, error) {
	q := r.URL.Query()
	d := DateRange{Start: q.Get("start"), End: q.Get("end")}

	for _, v := range []string{d.Start, d.End} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, v); err != nil {
			return DateRange{}, invalidRangeError("start and end must be dates in YYYY-MM-DD format")
		}
	}
	if d.Start != "" && d.End != "" && d.Start > d.End {
		return DateRange{}, invalidRangeError("start must not be after end")
	}
	return d, nil
}

// expensesInRange loads the user's expenses, filtered when the range is set.
func (h *Handlers) expensesInRange(ctx context.Context, userID int64, d DateRange) ([]models.Expense, error) {
	if !d.IsSet() {
		return h.db.ListExpenses(ctx, userID, storage.ListOptions{})
	}
	start, end := d.Start, d.End
	if start == "" {
		start = earliestDate
	}
	if end == "" {
		end = latestDate
	}
	return h.db.ExpensesByDateRange(ctx, userID, start, end)
}

// CategoryRow is one category line on the analytics page.
type CategoryRow struct {
	Category      string
	Total         float64
	Percentage    float64
	CategoryStyle CategoryStyle
}

// MonthRow is one month line on the analytics page.
type MonthRow struct {
	Month string
	Label string
	Total float64
}

// AnalyticsViewModel is the data passed to the analytics view template.
type AnalyticsViewModel struct {
	Page
	Range      DateRange
	Summary    analytics.Summary
	Categories []CategoryRow
	Months     []MonthRow
	Expenses   []ExpenseItem
}

// Analytics renders the spending summary for the current user.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	dateRange, err := parseDateRange(r)
	if err != nil {
		h.flashRedirect(w, r, models.FlashError, "Invalid date range: "+err.Error(), "/analytics")
		return
	}

	expenses, err := h.expensesInRange(r.Context(), user.ID, dateRange)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Loading expenses for analytics failed")
		h.flashRedirect(w, r, models.FlashError, "Error loading analytics. Please try again.", "/")
		return
	}

	summary := analytics.Summarize(expenses)

	categoryRows := make([]CategoryRow, 0, len(summary.CategoryTotals))
	for _, ct := range summary.CategoryTotals {
		categoryRows = append(categoryRows, CategoryRow{
			Category:      ct.Key,
			Total:         ct.Amount,
			Percentage:    analytics.Share(ct.Amount, summary.TotalSpending),
			CategoryStyle: getCategoryStyle(ct.Key),
		})
	}

	monthRows := make([]MonthRow, 0, len(summary.MonthlyTotals))
	for _, mt := range summary.MonthlyTotals {
		label := mt.Key
		if t, err := time.Parse("2006-01", mt.Key); err == nil {
			label = t.Format("January 2006")
		}
		monthRows = append(monthRows, MonthRow{Month: mt.Key, Label: label, Total: mt.Amount})
	}

	items := make([]ExpenseItem, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, ExpenseItem{Expense: e, CategoryStyle: getCategoryStyle(e.Category)})
	}

	h.render(w, r, http.StatusOK, "analytics.html", AnalyticsViewModel{
		Page:       h.page(r, "Analytics"),
		Range:      dateRange,
		Summary:    summary,
		Categories: categoryRows,
		Months:     monthRows,
		Expenses:   items,
	})
}
