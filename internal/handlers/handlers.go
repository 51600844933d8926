package handlers

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"time"

	"spendbook/internal/analytics"
	"spendbook/internal/logger"
	"spendbook/internal/models"
	"spendbook/internal/storage"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// sessionContextKey holds the *storage.SessionInfo of the request.
	sessionContextKey contextKey = "session"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is used when Options.SessionDuration is zero.
	DefaultSessionDuration = 30 * 24 * time.Hour
)

// Store is the persistence the handlers need.
type Store interface {
	SaveExpense(ctx context.Context, userID int64, e *models.Expense) (int64, error)
	GetExpense(ctx context.Context, userID, id int64) (*models.Expense, error)
	ListExpenses(ctx context.Context, userID int64, opts storage.ListOptions) ([]models.Expense, error)
	ExpensesByDateRange(ctx context.Context, userID int64, start, end string) ([]models.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int64) (bool, error)
	Categories(ctx context.Context, userID int64) ([]string, error)

	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	ValidateSessionWithInfo(ctx context.Context, token string) (*storage.SessionInfo, error)
	RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error
	SetFlash(ctx context.Context, token string, f models.Flash) error
	ClearFlash(ctx context.Context, token string) error
	DeleteSession(ctx context.Context, token string) error

	Ping(ctx context.Context) bool
}

// Accounts creates and authenticates users.
type Accounts interface {
	CreateUser(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Options configures Handlers.
type Options struct {
	// Templates holds base.html and the page templates.
	Templates fs.FS
	// Secret keys the session cookie signature.
	Secret          string
	SecureCookie    bool
	SessionDuration time.Duration
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db              Store
	accounts        Accounts
	templates       fs.FS
	secret          string
	secureCookie    bool
	sessionDuration time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db Store, accounts Accounts, opts Options) *Handlers {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	return &Handlers{
		db:              db,
		accounts:        accounts,
		templates:       opts.Templates,
		secret:          opts.Secret,
		secureCookie:    opts.SecureCookie,
		sessionDuration: opts.SessionDuration,
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func sessionFromContext(r *http.Request) *storage.SessionInfo {
	if info, ok := r.Context().Value(sessionContextKey).(*storage.SessionInfo); ok {
		return info
	}
	return nil
}

// Page is the data every template receives through base.html.
type Page struct {
	Title string
	User  *models.User
	Flash *models.Flash
}

// page builds the base view data and consumes the session's pending flash.
func (h *Handlers) page(r *http.Request, title string) Page {
	p := Page{Title: title, User: GetUserFromContext(r)}
	if info := sessionFromContext(r); info != nil && info.Flash != nil {
		p.Flash = info.Flash
		if err := h.db.ClearFlash(r.Context(), info.Token); err != nil {
			logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to clear flash")
		}
	}
	return p
}

// flashRedirect stores a notice on the current session and redirects.
func (h *Handlers) flashRedirect(w http.ResponseWriter, r *http.Request, kind, message, to string) {
	if info := sessionFromContext(r); info != nil {
		if err := h.db.SetFlash(r.Context(), info.Token, models.Flash{Kind: kind, Message: message}); err != nil {
			logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to store flash")
		}
	}
	http.Redirect(w, r, to, http.StatusFound)
}

// CategoryDef defines the properties of a category.
type CategoryDef struct {
	Name  string
	Icon  string
	Color string
}

var categories = []CategoryDef{
	{"Food & Dining", "🍽️", "#60a5fa"},
	{"Transportation", "🚌", "#a78bfa"},
	{"Shopping", "🛍️", "#34d399"},
	{"Entertainment", "🎮", "#f472b6"},
	{"Healthcare", "💊", "#f87171"},
	{"Utilities", "💡", "#fbbf24"},
	{"Rent", "🏠", "#818cf8"},
	{"Education", "📚", "#2dd4bf"},
	{"Travel", "✈️", "#fb923c"},
	{"Other", "📦", "#94a3b8"},
}

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

func getCategoryStyle(category string) CategoryStyle {
	for _, c := range categories {
		if strings.EqualFold(c.Name, category) {
			return CategoryStyle{Icon: c.Icon, Color: c.Color}
		}
	}
	return CategoryStyle{Icon: "📦", Color: "#94a3b8"}
}

// categoryChoices returns the predefined categories followed by any other
// category the user has recorded, in ascending order.
func (h *Handlers) categoryChoices(r *http.Request, userID int64) []CategoryDef {
	choices := append([]CategoryDef(nil), categories...)

	used, err := h.db.Categories(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to load user categories")
		return choices
	}

	var extra []string
	for _, name := range used {
		if _, known := findCategory(name); !known {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		style := getCategoryStyle(name)
		choices = append(choices, CategoryDef{Name: name, Icon: style.Icon, Color: style.Color})
	}
	return choices
}

func findCategory(name string) (CategoryDef, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return CategoryDef{}, false
}

var templateFuncs = template.FuncMap{
	"money": func(v float64) string {
		return analytics.FormatAmount(v)
	},
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, viewName string, data any) {
	log := logger.FromContext(r.Context())

	tmpl, err := template.New(viewName).Funcs(templateFuncs).ParseFS(h.templates, "base.html", viewName)
	if err != nil {
		log.Error().Err(err).Str("view", viewName).Msg("Template error")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("view", viewName).Msg("Template execution error")
	}
}

// NotFound renders the 404 page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "404.html", h.page(r, "Not found"))
}

// ServerError renders the 500 page. The session is not consulted so the
// page renders even when the failure came from the database.
func (h *Handlers) ServerError(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusInternalServerError, "500.html", Page{Title: "Something went wrong"})
}
