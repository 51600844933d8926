package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendbook/internal/analytics"
	"spendbook/internal/logger"
	"spendbook/internal/models"
	"spendbook/internal/storage"

	"github.com/go-chi/chi/v5"
)

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	models.Expense
	CategoryStyle CategoryStyle
}

// ExpenseGroup groups expenses by date.
type ExpenseGroup struct {
	Title string
	Date  string
	Total float64
	Items []ExpenseItem
}

// ListViewModel is the data passed to the list view template.
type ListViewModel struct {
	Page
	Count  int
	Total  float64
	Groups []ExpenseGroup
}

// FormViewModel is the data passed to the add/edit form template.
type FormViewModel struct {
	Page
	Expense    models.Expense
	Amount     string
	IsEdit     bool
	Categories []CategoryDef
}

// Index renders the current user's expenses grouped by date.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	vm := ListViewModel{Page: h.page(r, "Expenses")}

	expenses, err := h.db.ListExpenses(r.Context(), user.ID, storage.ListOptions{})
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("ListExpenses failed")
		vm.Flash = &models.Flash{Kind: models.FlashError, Message: "Error loading expenses. Please try again."}
		h.render(w, r, http.StatusInternalServerError, "list.html", vm)
		return
	}

	summary := analytics.Summarize(expenses)
	vm.Count = summary.Count
	vm.Total = summary.TotalSpending
	vm.Groups = groupByDate(expenses, time.Now())

	h.render(w, r, http.StatusOK, "list.html", vm)
}

// groupByDate splits expenses, already ordered newest date first, into
// consecutive per-date groups.
func groupByDate(expenses []models.Expense, now time.Time) []ExpenseGroup {
	var groups []ExpenseGroup
	var members [][]models.Expense

	for _, e := range expenses {
		if n := len(groups); n == 0 || groups[n-1].Date != e.Date {
			groups = append(groups, ExpenseGroup{Date: e.Date, Title: formatGroupTitle(e.Date, now)})
			members = append(members, nil)
		}
		last := len(groups) - 1
		groups[last].Items = append(groups[last].Items, ExpenseItem{
			Expense:       e,
			CategoryStyle: getCategoryStyle(e.Category),
		})
		members[last] = append(members[last], e)
	}

	for i := range groups {
		groups[i].Total = analytics.Summarize(members[i]).TotalSpending
	}
	return groups
}

func formatGroupTitle(date string, now time.Time) string {
	if date == now.Format(models.DateLayout) {
		return "TODAY"
	}
	if date == now.AddDate(0, 0, -1).Format(models.DateLayout) {
		return "YESTERDAY"
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return strings.ToUpper(t.Format("Mon, 02 Jan '06"))
}

// AddExpenseForm renders the form to create a new expense.
func (h *Handlers) AddExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	h.render(w, r, http.StatusOK, "form.html", FormViewModel{
		Page:       h.page(r, "Add expense"),
		Expense:    models.Expense{Date: time.Now().Format(models.DateLayout)},
		Categories: h.categoryChoices(r, user.ID),
	})
}

// AddExpense handles the creation of a new expense.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	expense, raw, err := parseExpenseForm(r)
	if err != nil {
		h.renderInvalidForm(w, r, user.ID, expense, raw, false, err)
		return
	}

	if _, err := h.db.SaveExpense(r.Context(), user.ID, &expense); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("SaveExpense failed")
		h.flashRedirect(w, r, models.FlashError, "Error adding expense. Please try again.", "/add")
		return
	}

	logger.FromContext(r.Context()).Debug().Int64("expense_id", expense.ID).Msg("Expense added")
	h.flashRedirect(w, r, models.FlashSuccess, "Expense added successfully!", "/")
}

// EditExpenseForm renders the form to edit an existing expense.
func (h *Handlers) EditExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	id, ok := expenseID(r)
	if !ok {
		h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
		return
	}

	expense, err := h.db.GetExpense(r.Context(), user.ID, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.FromContext(r.Context()).Error().Err(err).Int64("expense_id", id).Msg("GetExpense failed")
			h.flashRedirect(w, r, models.FlashError, "Error loading expense. Please try again.", "/")
			return
		}
		h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
		return
	}

	h.render(w, r, http.StatusOK, "form.html", FormViewModel{
		Page:       h.page(r, "Edit expense"),
		Expense:    *expense,
		Amount:     strconv.FormatFloat(expense.Amount, 'f', -1, 64),
		IsEdit:     true,
		Categories: h.categoryChoices(r, user.ID),
	})
}

// EditExpense handles the update of an existing expense.
func (h *Handlers) EditExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	id, ok := expenseID(r)
	if !ok {
		h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
		return
	}

	expense, raw, err := parseExpenseForm(r)
	expense.ID = id
	if err != nil {
		h.renderInvalidForm(w, r, user.ID, expense, raw, true, err)
		return
	}

	if _, err := h.db.SaveExpense(r.Context(), user.ID, &expense); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Int64("expense_id", id).Msg("SaveExpense failed")
		h.flashRedirect(w, r, models.FlashError, "Error updating expense. Please try again.", "/edit/"+strconv.FormatInt(id, 10))
		return
	}

	h.flashRedirect(w, r, models.FlashSuccess, "Expense updated successfully!", "/")
}

// DeleteExpense removes an expense owned by the current user.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	id, ok := expenseID(r)
	if !ok {
		h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
		return
	}

	deleted, err := h.db.DeleteExpense(r.Context(), user.ID, id)
	switch {
	case err != nil:
		logger.FromContext(r.Context()).Error().Err(err).Int64("expense_id", id).Msg("DeleteExpense failed")
		h.flashRedirect(w, r, models.FlashError, "Error deleting expense. Please try again.", "/")
	case !deleted:
		h.flashRedirect(w, r, models.FlashError, "Expense not found", "/")
	default:
		h.flashRedirect(w, r, models.FlashSuccess, "Expense deleted successfully!", "/")
	}
}

func (h *Handlers) renderInvalidForm(w http.ResponseWriter, r *http.Request, userID int64, e models.Expense, rawAmount string, isEdit bool, err error) {
	title := "Add expense"
	if isEdit {
		title = "Edit expense"
	}
	vm := FormViewModel{
		Page:       h.page(r, title),
		Expense:    e,
		Amount:     rawAmount,
		IsEdit:     isEdit,
		Categories: h.categoryChoices(r, userID),
	}
	vm.Flash = &models.Flash{Kind: models.FlashError, Message: err.Error()}
	h.render(w, r, http.StatusBadRequest, "form.html", vm)
}

func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formError is a validation message shown on the expense form.
type formError string

func (e formError) Error() string { return string(e) }

const (
	errMissingFields  formError = "Please fill in all required fields"
	errInvalidAmount  formError = "Amount must be a number"
	errAmountNotAbove formError = "Amount must be greater than 0"
	errInvalidDate    formError = "Date must be in YYYY-MM-DD format"
)

// parseExpenseForm reads and validates the expense form. The returned
// expense always carries the submitted values so the form can be redisplayed.
func parseExpenseForm(r *http.Request) (models.Expense, string, error) {
	if err := r.ParseForm(); err != nil {
		return models.Expense{}, "", errMissingFields
	}

	rawAmount := strings.TrimSpace(r.FormValue("amount"))
	e := models.Expense{
		Category:    strings.TrimSpace(r.FormValue("category")),
		Date:        strings.TrimSpace(r.FormValue("date")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}

	if rawAmount == "" || e.Category == "" || e.Date == "" {
		return e, rawAmount, errMissingFields
	}

	amount, err := analytics.ParseAmount(rawAmount)
	if err != nil {
		return e, rawAmount, errInvalidAmount
	}
	if amount <= 0 {
		return e, rawAmount, errAmountNotAbove
	}
	e.Amount = amount

	if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
		return e, rawAmount, errInvalidDate
	}

	return e, rawAmount, nil
}
