package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"spendbook/internal/auth"
	"spendbook/internal/models"
	"spendbook/internal/storage"
	"spendbook/web"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "handler-test-secret"

// HandlersTestSuite exercises the handlers through a router over an in-memory database.
type HandlersTestSuite struct {
	suite.Suite
	ctx      context.Context
	db       *storage.DB
	accounts *auth.Service
	h        *Handlers
	router   http.Handler

	user   *models.User
	cookie *http.Cookie
	other  *models.User
}

func (suite *HandlersTestSuite) SetupTest() {
	suite.ctx = context.Background()

	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	suite.accounts, err = auth.NewService(db)
	require.NoError(suite.T(), err)

	suite.h = NewHandlers(db, suite.accounts, Options{
		Templates:       web.Templates(),
		Secret:          testSecret,
		SessionDuration: 24 * time.Hour,
	})
	suite.router = testRouter(suite.h)

	suite.user, err = suite.accounts.CreateUser(suite.ctx, "testuser", "test@example.com", "testpass")
	require.NoError(suite.T(), err)
	suite.other, err = suite.accounts.CreateUser(suite.ctx, "otheruser", "other@example.com", "otherpass")
	require.NoError(suite.T(), err)

	suite.cookie = suite.sessionCookie(suite.user.ID, time.Now().Add(24*time.Hour))
}

func (suite *HandlersTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func testRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.Get("/health", h.Health)
	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/signup", h.SignupForm)
	r.Post("/signup", h.Signup)
	r.Get("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Get("/", h.Index)
		r.Get("/add", h.AddExpenseForm)
		r.Post("/add", h.AddExpense)
		r.Get("/edit/{id}", h.EditExpenseForm)
		r.Post("/edit/{id}", h.EditExpense)
		r.Post("/delete/{id}", h.DeleteExpense)
		r.Get("/analytics", h.Analytics)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(h.APIAuthMiddleware)
		r.Get("/expenses", h.APIExpenses)
		r.Get("/analytics", h.APIAnalytics)
	})
	return r
}

func (suite *HandlersTestSuite) sessionCookie(userID int64, expiresAt time.Time) *http.Cookie {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.db.CreateSession(suite.ctx, token, userID, expiresAt))
	return &http.Cookie{Name: SessionCookieName, Value: auth.SignToken(testSecret, token)}
}

func (suite *HandlersTestSuite) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) addExpense(userID int64, amount float64, category, date, description string) int64 {
	id, err := suite.db.SaveExpense(suite.ctx, userID, &models.Expense{
		Amount: amount, Category: category, Date: date, Description: description,
	})
	require.NoError(suite.T(), err)
	return id
}

func expenseForm(amount, category, date, description string) url.Values {
	return url.Values{"amount": {amount}, "category": {category}, "date": {date}, "description": {description}}
}

func (suite *HandlersTestSuite) TestProtectedPagesRedirectToLogin() {
	for _, path := range []string{"/", "/add", "/edit/1", "/analytics"} {
		w := suite.do(http.MethodGet, path, nil, nil)
		assert.Equal(suite.T(), http.StatusFound, w.Code, path)
		assert.Equal(suite.T(), "/login", w.Header().Get("Location"), path)
	}
}

func (suite *HandlersTestSuite) TestAPIRequiresAuth() {
	w := suite.do(http.MethodGet, "/api/expenses", nil, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.JSONEq(suite.T(), `{"error":"Authentication required"}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestTamperedCookieIsRejected() {
	forged := &http.Cookie{Name: SessionCookieName, Value: auth.SignToken("wrong-secret", "token")}

	w := suite.do(http.MethodGet, "/", nil, forged)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/login", w.Header().Get("Location"))

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(suite.T(), cleared, "invalid cookie is cleared")
}

func (suite *HandlersTestSuite) TestExpiredSessionIsRejected() {
	stale := suite.sessionCookie(suite.user.ID, time.Now().Add(-time.Minute))

	w := suite.do(http.MethodGet, "/api/analytics", nil, stale)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestRollingSessionRenewal() {
	// Less than half of the 24h lifetime left.
	cookie := suite.sessionCookie(suite.user.ID, time.Now().Add(2*time.Hour))

	w := suite.do(http.MethodGet, "/", nil, cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var renewed *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			renewed = c
		}
	}
	require.NotNil(suite.T(), renewed, "renewal refreshes the cookie")
	assert.Equal(suite.T(), cookie.Value, renewed.Value)
	assert.Equal(suite.T(), int((24 * time.Hour).Seconds()), renewed.MaxAge)

	token, ok := auth.VerifySignedToken(testSecret, cookie.Value)
	require.True(suite.T(), ok)
	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, token)
	require.NoError(suite.T(), err)
	assert.Greater(suite.T(), time.Until(info.ExpiresAt), 20*time.Hour)
}

func (suite *HandlersTestSuite) TestFreshSessionIsNotRenewed() {
	w := suite.do(http.MethodGet, "/", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Empty(suite.T(), w.Result().Cookies())
}

func (suite *HandlersTestSuite) TestIndexListsOnlyOwnExpenses() {
	suite.addExpense(suite.user.ID, 12.5, "Food & Dining", "2025-01-15", "Lunch")
	suite.addExpense(suite.user.ID, 7.25, "Transportation", "2025-01-16", "Bus pass")
	suite.addExpense(suite.other.ID, 999, "Rent", "2025-01-16", "Someone else's rent")

	w := suite.do(http.MethodGet, "/", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(suite.T(), body, "Lunch")
	assert.Contains(suite.T(), body, "Bus pass")
	assert.Contains(suite.T(), body, "19.75")
	assert.Contains(suite.T(), body, "2 expenses")
	assert.NotContains(suite.T(), body, "Someone else")
}

func (suite *HandlersTestSuite) TestIndexOffersDeleteConfirmation() {
	suite.addExpense(suite.user.ID, 3, "Food", "2025-01-01", "Tea")

	w := suite.do(http.MethodGet, "/", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(suite.T(), body, `data-confirm="Are you sure you want to delete this expense?"`)
	assert.Contains(suite.T(), body, `<script src="/static/app.js" defer></script>`)
}

func (suite *HandlersTestSuite) TestPagesAlwaysRenderFullDocument() {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(suite.cookie)
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "<html")
	assert.Contains(suite.T(), w.Body.String(), "list-screen")
}

func (suite *HandlersTestSuite) TestServerErrorPage() {
	w := httptest.NewRecorder()
	suite.h.ServerError(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(suite.T(), "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(suite.T(), w.Body.String(), "Something went wrong")
}

func (suite *HandlersTestSuite) TestAddExpense() {
	w := suite.do(http.MethodPost, "/add", expenseForm("12.50", "Food & Dining", "2025-02-01", "Lunch"), suite.cookie)
	require.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))

	expenses, err := suite.db.ListExpenses(suite.ctx, suite.user.ID, storage.ListOptions{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), expenses, 1)
	assert.Equal(suite.T(), 12.5, expenses[0].Amount)
	assert.Equal(suite.T(), "Food & Dining", expenses[0].Category)
	assert.Equal(suite.T(), "2025-02-01", expenses[0].Date)
	assert.Equal(suite.T(), "Lunch", expenses[0].Description)

	// The notice is shown once.
	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.Contains(suite.T(), w.Body.String(), "Expense added successfully!")
	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.NotContains(suite.T(), w.Body.String(), "Expense added successfully!")
}

func (suite *HandlersTestSuite) TestAddExpenseValidation() {
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"missing amount", expenseForm("", "Food", "2025-01-01", ""), "Please fill in all required fields"},
		{"missing category", expenseForm("5", " ", "2025-01-01", ""), "Please fill in all required fields"},
		{"missing date", expenseForm("5", "Food", "", ""), "Please fill in all required fields"},
		{"amount not a number", expenseForm("five", "Food", "2025-01-01", ""), "Amount must be a number"},
		{"zero amount", expenseForm("0", "Food", "2025-01-01", ""), "Amount must be greater than 0"},
		{"negative amount", expenseForm("-3.50", "Food", "2025-01-01", ""), "Amount must be greater than 0"},
		{"bad date", expenseForm("5", "Food", "01/02/2025", ""), "Date must be in YYYY-MM-DD format"},
		{"impossible date", expenseForm("5", "Food", "2025-02-30", ""), "Date must be in YYYY-MM-DD format"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w := suite.do(http.MethodPost, "/add", tt.form, suite.cookie)
			assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
			assert.Contains(suite.T(), w.Body.String(), tt.message)
		})
	}

	count, err := suite.db.CountExpenses(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), count, "invalid submissions store nothing")
}

func (suite *HandlersTestSuite) TestAddExpenseHugeExponentFailsFast() {
	for _, amount := range []string{"1e100000000", "1e-100000000"} {
		start := time.Now()
		w := suite.do(http.MethodPost, "/add", expenseForm(amount, "Food", "2025-01-01", ""), suite.cookie)
		assert.Equal(suite.T(), http.StatusBadRequest, w.Code, amount)
		assert.Contains(suite.T(), w.Body.String(), "Amount must be a number", amount)
		assert.Less(suite.T(), time.Since(start), 2*time.Second, amount)
	}

	count, err := suite.db.CountExpenses(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), count)
}

func (suite *HandlersTestSuite) TestAddFormOffersCategories() {
	suite.addExpense(suite.user.ID, 3, "Pets", "2025-01-01", "")

	w := suite.do(http.MethodGet, "/add", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(suite.T(), body, `value="Healthcare"`)
	assert.Contains(suite.T(), body, `value="Pets"`, "free-text categories the user has used are offered")
}

func (suite *HandlersTestSuite) TestEditExpense() {
	id := suite.addExpense(suite.user.ID, 10, "Food", "2025-01-01", "Before")
	path := "/edit/" + strconv.FormatInt(id, 10)

	w := suite.do(http.MethodGet, path, nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), `value="Before"`)

	w = suite.do(http.MethodPost, path, expenseForm("20.25", "Travel", "2025-01-03", "After"), suite.cookie)
	require.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))

	got, err := suite.db.GetExpense(suite.ctx, suite.user.ID, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 20.25, got.Amount)
	assert.Equal(suite.T(), "Travel", got.Category)
	assert.Equal(suite.T(), "After", got.Description)
}

func (suite *HandlersTestSuite) TestEditOtherUsersExpense() {
	id := suite.addExpense(suite.other.ID, 10, "Food", "2025-01-01", "Not yours")
	path := "/edit/" + strconv.FormatInt(id, 10)

	w := suite.do(http.MethodGet, path, nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))

	w = suite.do(http.MethodPost, path, expenseForm("1", "Food", "2025-01-01", "Hijacked"), suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)

	got, err := suite.db.GetExpense(suite.ctx, suite.other.ID, id)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Not yours", got.Description, "the owner's row is untouched")

	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.Contains(suite.T(), w.Body.String(), "Expense not found")
}

func (suite *HandlersTestSuite) TestEditInvalidID() {
	w := suite.do(http.MethodGet, "/edit/abc", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))
}

func (suite *HandlersTestSuite) TestDeleteExpense() {
	id := suite.addExpense(suite.user.ID, 10, "Food", "2025-01-01", "")
	theirs := suite.addExpense(suite.other.ID, 10, "Food", "2025-01-01", "")

	w := suite.do(http.MethodPost, "/delete/"+strconv.FormatInt(id, 10), nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.Contains(suite.T(), w.Body.String(), "Expense deleted successfully!")

	count, err := suite.db.CountExpenses(suite.ctx, suite.user.ID)
	require.NoError(suite.T(), err)
	assert.Zero(suite.T(), count)

	suite.do(http.MethodPost, "/delete/"+strconv.FormatInt(theirs, 10), nil, suite.cookie)
	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.Contains(suite.T(), w.Body.String(), "Expense not found")

	count, err = suite.db.CountExpenses(suite.ctx, suite.other.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count, "another user's expense survives")
}

func (suite *HandlersTestSuite) TestAnalyticsPage() {
	suite.addExpense(suite.user.ID, 100.505, "Food", "2025-02-13", "")
	suite.addExpense(suite.user.ID, 49.495, "Food", "2025-03-01", "")

	w := suite.do(http.MethodGet, "/analytics", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(suite.T(), body, "150.00")
	assert.Contains(suite.T(), body, "75.00")
	assert.Contains(suite.T(), body, "February 2025")
	assert.Contains(suite.T(), body, "100.51")
}

func (suite *HandlersTestSuite) TestAnalyticsPageInvalidRange() {
	w := suite.do(http.MethodGet, "/analytics?start=2025-03-01&end=2025-01-01", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/analytics", w.Header().Get("Location"))
}

func (suite *HandlersTestSuite) TestAPIAnalytics() {
	suite.addExpense(suite.user.ID, 100.505, "Food", "2025-02-13", "")
	suite.addExpense(suite.user.ID, 49.495, "Food", "2025-03-01", "")
	suite.addExpense(suite.other.ID, 1000, "Rent", "2025-03-01", "")

	w := suite.do(http.MethodGet, "/api/analytics", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{
		"total_spending": 150,
		"expense_count": 2,
		"category_totals": {"Food": 150},
		"monthly_totals": {"2025-02": 100.51, "2025-03": 49.5},
		"average_expense": 75
	}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestAPIAnalyticsEmpty() {
	w := suite.do(http.MethodGet, "/api/analytics", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{
		"total_spending": 0,
		"expense_count": 0,
		"category_totals": {},
		"monthly_totals": {},
		"average_expense": 0
	}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestAPIAnalyticsDateRange() {
	suite.addExpense(suite.user.ID, 10, "Food", "2025-01-31", "")
	suite.addExpense(suite.user.ID, 20, "Food", "2025-02-01", "")
	suite.addExpense(suite.user.ID, 30, "Travel", "2025-02-28", "")

	w := suite.do(http.MethodGet, "/api/analytics?start=2025-02-01&end=2025-02-28", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var summary struct {
		Total float64 `json:"total_spending"`
		Count int     `json:"expense_count"`
	}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(suite.T(), 50.0, summary.Total)
	assert.Equal(suite.T(), 2, summary.Count)

	w = suite.do(http.MethodGet, "/api/analytics?start=2025-02-15", nil, suite.cookie)
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(suite.T(), 1, summary.Count, "an open end is unbounded")

	w = suite.do(http.MethodGet, "/api/analytics?end=yesterday", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "YYYY-MM-DD")
}

func (suite *HandlersTestSuite) TestAPIExpenses() {
	for _, date := range []string{"2025-01-01", "2025-01-02", "2025-01-03"} {
		suite.addExpense(suite.user.ID, 1, "Food", date, date)
	}
	suite.addExpense(suite.other.ID, 1, "Food", "2025-01-04", "theirs")

	w := suite.do(http.MethodGet, "/api/expenses", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var all []models.Expense
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(suite.T(), all, 3)
	assert.Equal(suite.T(), "2025-01-03", all[0].Date)

	w = suite.do(http.MethodGet, "/api/expenses?limit=1&offset=1", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	var page []models.Expense
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(suite.T(), page, 1)
	assert.Equal(suite.T(), "2025-01-02", page[0].Date)

	w = suite.do(http.MethodGet, "/api/expenses?limit=-1", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.JSONEq(suite.T(), `{"error":"limit must be a non-negative integer"}`, w.Body.String())
}

func (suite *HandlersTestSuite) TestAPIExpensesEmptyIsArray() {
	w := suite.do(http.MethodGet, "/api/expenses", nil, suite.cookie)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `[]`, w.Body.String())
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"status":"healthy","database":"connected"}`, w.Body.String())

	suite.db.Close()
	w = suite.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(suite.T(), `{"status":"unhealthy","database":"disconnected"}`, w.Body.String())
	suite.db = nil
}

func (suite *HandlersTestSuite) TestLogin() {
	form := url.Values{"email": {"TEST@example.com"}, "password": {"testpass"}}
	w := suite.do(http.MethodPost, "/login", form, nil)
	require.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			session = c
		}
	}
	require.NotNil(suite.T(), session)
	assert.True(suite.T(), session.HttpOnly)

	w = suite.do(http.MethodGet, "/", nil, session)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Welcome back, testuser!")

	w = suite.do(http.MethodGet, "/login", nil, session)
	assert.Equal(suite.T(), http.StatusFound, w.Code, "logged-in users skip the login page")
}

func (suite *HandlersTestSuite) TestLoginFailures() {
	w := suite.do(http.MethodPost, "/login", url.Values{"email": {"test@example.com"}, "password": {"wrong"}}, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Invalid email or password")

	w = suite.do(http.MethodPost, "/login", url.Values{"email": {"nobody@example.com"}, "password": {"testpass"}}, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Invalid email or password")

	w = suite.do(http.MethodPost, "/login", url.Values{"email": {""}, "password": {""}}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestSignup() {
	form := url.Values{
		"username":         {"newbie"},
		"email":            {"newbie@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
	}
	w := suite.do(http.MethodPost, "/signup", form, nil)
	require.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/", w.Header().Get("Location"))
	require.NotEmpty(suite.T(), w.Result().Cookies())

	user, err := suite.db.GetUserByEmail(suite.ctx, "newbie@example.com")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "newbie", user.Username)

	w = suite.do(http.MethodPost, "/signup", form, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "already registered")
}

func (suite *HandlersTestSuite) TestSignupValidation() {
	mismatch := url.Values{
		"username": {"a"}, "email": {"a@example.com"}, "password": {"secret1"}, "confirm_password": {"secret2"},
	}
	w := suite.do(http.MethodPost, "/signup", mismatch, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Passwords do not match")

	short := url.Values{
		"username": {"a"}, "email": {"a@example.com"}, "password": {"123"}, "confirm_password": {"123"},
	}
	w = suite.do(http.MethodPost, "/signup", short, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Password must be at least 6 characters")
}

func (suite *HandlersTestSuite) TestLogout() {
	w := suite.do(http.MethodGet, "/logout", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code)
	assert.Equal(suite.T(), "/login", w.Header().Get("Location"))

	w = suite.do(http.MethodGet, "/", nil, suite.cookie)
	assert.Equal(suite.T(), http.StatusFound, w.Code, "the old cookie no longer authenticates")
}

func (suite *HandlersTestSuite) TestNotFound() {
	w := suite.do(http.MethodGet, "/nope", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "Page not found")
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func TestGroupByDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	expenses := []models.Expense{
		{ID: 1, Amount: 0.1, Date: "2025-03-10"},
		{ID: 2, Amount: 0.2, Date: "2025-03-10"},
		{ID: 3, Amount: 5, Date: "2025-03-09"},
		{ID: 4, Amount: 1, Date: "2025-02-01"},
	}

	groups := groupByDate(expenses, now)

	require.Len(t, groups, 3)
	assert.Equal(t, "TODAY", groups[0].Title)
	assert.Equal(t, 0.3, groups[0].Total, "group totals are exact")
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, "YESTERDAY", groups[1].Title)
	assert.Equal(t, "SAT, 01 FEB '25", groups[2].Title)
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		query   string
		want    DateRange
		wantErr bool
	}{
		{"", DateRange{}, false},
		{"start=2025-01-01", DateRange{Start: "2025-01-01"}, false},
		{"start=2025-01-01&end=2025-01-31", DateRange{Start: "2025-01-01", End: "2025-01-31"}, false},
		{"start=2025-01-01&end=2025-01-01", DateRange{Start: "2025-01-01", End: "2025-01-01"}, false},
		{"start=2025-02-01&end=2025-01-01", DateRange{}, true},
		{"start=2025-1-1", DateRange{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/analytics?"+tt.query, http.NoBody)
			got, err := parseDateRange(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetCategoryStyle(t *testing.T) {
	assert.Equal(t, "🍽️", getCategoryStyle("food & dining").Icon)
	assert.Equal(t, "📦", getCategoryStyle("Unknown").Icon)
}
