package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spendbook/internal/auth"
	"spendbook/internal/config"
	"spendbook/internal/handlers"
	"spendbook/internal/logger"
	"spendbook/internal/middleware"
	"spendbook/internal/storage"
	"spendbook/web"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, cfg.Debug())

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer db.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Database ready")

	if n, err := db.CleanExpiredSessions(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to clean expired sessions")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("Cleaned expired sessions")
	}

	accounts, err := auth.NewService(db)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	if err := bootstrapAdmin(ctx, cfg, db, accounts, log); err != nil {
		return err
	}

	h := handlers.NewHandlers(db, accounts, handlers.Options{
		Templates:       web.Templates(),
		Secret:          cfg.SecretKey,
		SecureCookie:    cfg.SecureCookies(),
		SessionDuration: cfg.SessionDuration,
	})

	limiter := middleware.NewLimiter(cfg.LoginRateLimit)
	defer limiter.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: setupRouter(h, routerDeps{
			log:         log,
			limiter:     limiter,
			corsOrigins: cfg.CORSOrigins,
			static:      web.Static(),
		}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}

// bootstrapAdmin creates the configured admin account when no user exists yet.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, db *storage.DB, accounts *auth.Service, log zerolog.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	user, err := accounts.CreateUser(ctx, cfg.AdminUser, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info().Str("username", user.Username).Msg("Created admin user")
	return nil
}

type routerDeps struct {
	log         zerolog.Logger
	limiter     *middleware.Limiter
	corsOrigins []string
	static      fs.FS
}

func setupRouter(h *handlers.Handlers, deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.log))
	r.Use(middleware.Recovery(deps.log, h.ServerError))
	r.Use(chimw.CleanPath)
	r.Use(middleware.SecurityHeaders)

	r.NotFound(h.NotFound)

	r.Get("/health", h.Health)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(deps.static))))

	// Public routes
	r.Get("/login", h.LoginForm)
	r.Get("/signup", h.SignupForm)
	r.Get("/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(deps.limiter.Middleware(h.RateLimited))
		r.Post("/login", h.Login)
		r.Post("/signup", h.Signup)
	})

	// Protected routes
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
		if len(deps.corsOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   deps.corsOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
				ExposedHeaders:   []string{middleware.RequestIDHeader},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(h.APIAuthMiddleware)
		r.Get("/expenses", h.APIExpenses)
		r.Get("/analytics", h.APIAnalytics)
	})

	return r
}
