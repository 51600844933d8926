package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"spendbook/internal/auth"
	"spendbook/internal/logger"
	"spendbook/internal/middleware"
	"spendbook/internal/models"
	"spendbook/internal/storage"
)

// AuthMiddleware wraps page handlers to require authentication. Anonymous
// requests are redirected to the login page.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// APIAuthMiddleware wraps JSON handlers to require authentication.
// Anonymous requests get a 401 JSON error.
func (h *Handlers) APIAuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
	})
}

// requireSession implements rolling sessions: if a session is past the
// halfway point of its lifetime, it is renewed.
func (h *Handlers) requireSession(next http.Handler, deny http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.currentSession(r)
		if err != nil {
			if _, cookieErr := r.Cookie(SessionCookieName); cookieErr == nil {
				// Invalid or expired session, clear the cookie
				h.clearSessionCookie(w)
			}
			if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, errNoSession) {
				logger.FromContext(r.Context()).Error().Err(err).Msg("Session lookup failed")
			}
			deny(w, r)
			return
		}

		now := time.Now()
		if info.ExpiresAt.Sub(now) < h.sessionDuration/2 {
			newExpiresAt := now.Add(h.sessionDuration)
			if err := h.db.RenewSession(r.Context(), info.Token, newExpiresAt); err == nil {
				h.setSessionCookie(w, info.Token)
				info.ExpiresAt = newExpiresAt
			} else {
				// If renewal fails, just continue with the current session
				logger.FromContext(r.Context()).Warn().Err(err).Msg("Session renewal failed")
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, info.User)
		ctx = context.WithValue(ctx, sessionContextKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errNoSession = errors.New("no valid session cookie")

// currentSession resolves the signed session cookie to a live session.
func (h *Handlers) currentSession(r *http.Request) (*storage.SessionInfo, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, errNoSession
	}
	token, ok := auth.VerifySignedToken(h.secret, cookie.Value)
	if !ok {
		return nil, errNoSession
	}
	return h.db.ValidateSessionWithInfo(r.Context(), token)
}

// AuthViewModel holds data for the login and signup pages.
type AuthViewModel struct {
	Page
	Error    string
	Username string
	Email    string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to expenses
	if _, err := h.currentSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", AuthViewModel{Page: h.page(r, "Log in")})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	vm := AuthViewModel{Page: h.page(r, "Log in")}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "login.html", vm)
		return
	}

	vm.Email = strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if vm.Email == "" || password == "" {
		vm.Error = "Email and password are required"
		h.render(w, r, http.StatusBadRequest, "login.html", vm)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), vm.Email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			vm.Error = "Invalid email or password"
			h.render(w, r, http.StatusUnauthorized, "login.html", vm)
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Msg("Login failed")
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "login.html", vm)
		return
	}

	if err := h.startSession(w, r, user, "Welcome back, "+user.Username+"!"); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to create session")
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "login.html", vm)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// SignupForm renders the signup page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	if _, err := h.currentSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render(w, r, http.StatusOK, "signup.html", AuthViewModel{Page: h.page(r, "Sign up")})
}

// Signup creates an account and logs the new user in.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	vm := AuthViewModel{Page: h.page(r, "Sign up")}
	if err := r.ParseForm(); err != nil {
		vm.Error = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	}

	vm.Username = strings.TrimSpace(r.FormValue("username"))
	vm.Email = strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if password != r.FormValue("confirm_password") {
		vm.Error = "Passwords do not match"
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	}

	user, err := h.accounts.CreateUser(r.Context(), vm.Username, vm.Email, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidInput):
		vm.Error = signupMessage(err)
		h.render(w, r, http.StatusBadRequest, "signup.html", vm)
		return
	case errors.Is(err, storage.ErrDuplicateUser):
		vm.Error = "That username or email is already registered"
		h.render(w, r, http.StatusConflict, "signup.html", vm)
		return
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("Signup failed")
		vm.Error = "An error occurred. Please try again."
		h.render(w, r, http.StatusInternalServerError, "signup.html", vm)
		return
	}

	logger.FromContext(r.Context()).Info().Int64("user_id", user.ID).Msg("User signed up")

	if err := h.startSession(w, r, user, "Welcome, "+user.Username+"! Your account is ready."); err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to create session")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// signupMessage strips the sentinel prefix from a validation error.
func signupMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": ")
	if msg == "" {
		return "Please check your details"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token, ok := auth.VerifySignedToken(h.secret, cookie.Value); ok {
			if err := h.db.DeleteSession(r.Context(), token); err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to delete session")
			}
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// RateLimited answers login and signup submissions over the per-IP limit.
func (h *Handlers) RateLimited(w http.ResponseWriter, r *http.Request) {
	view, title := "login.html", "Log in"
	if r.URL.Path == "/signup" {
		view, title = "signup.html", "Sign up"
	}
	h.render(w, r, http.StatusTooManyRequests, view, AuthViewModel{
		Page:  h.page(r, title),
		Error: "Too many attempts. Please wait a minute and try again.",
	})
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *models.User, welcome string) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return err
	}
	if err := h.db.CreateSession(r.Context(), token, user.ID, time.Now().Add(h.sessionDuration)); err != nil {
		return err
	}
	if err := h.db.SetFlash(r.Context(), token, models.Flash{Kind: models.FlashSuccess, Message: welcome}); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Failed to store flash")
	}
	h.setSessionCookie(w, token)
	return nil
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    auth.SignToken(h.secret, token),
		Path:     "/",
		MaxAge:   int(h.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
