package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/auth"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/logging"
	"github.com/noirepd/precinct/internal/shared/metrics"
	secmiddleware "github.com/noirepd/precinct/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Cache  *scoring.RedisCache
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	app := &App{Config: cfg}

	// Database is optional; without it the platform runs on in-memory stores
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Warnw("database not available, running in limited mode", "error", err)
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			log.Fatalw("migration failed", "error", err)
		}
	}

	if cfg.KurrentDB.Enabled {
		bus, err := events.NewBus(cfg.KurrentDB)
		if err != nil {
			log.Warnw("KurrentDB not available, notifications disabled", "error", err)
		} else {
			app.Bus = bus
			defer bus.Close()
			log.Infow("KurrentDB notification sink initialized", "host", cfg.KurrentDB.Host, "port", cfg.KurrentDB.Port)
		}
	}

	if cfg.Redis.Enabled {
		cache, err := scoring.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			log.Warnw("redis not available, most wanted board is computed per request", "error", err)
		} else {
			app.Cache = cache
			defer cache.Close()
		}
	}

	mods := buildModules(app)

	refresher := scoring.NewRefresher(mods.ranker, cfg.Workflow.RankingRefreshSpec)
	if err := refresher.Start(); err != nil {
		log.Fatalw("invalid ranking refresh schedule", "schedule", cfg.Workflow.RankingRefreshSpec, "error", err)
	}
	defer refresher.Stop()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler(app))

	r.Route("/api/v1", func(r chi.Router) {
		limiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst)
		r.Route("/public", func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Mount("/rewards", mods.rewards.PublicRoutes())
			r.Mount("/", mods.scoring.PublicRoutes())
		})

		if cfg.Server.IsDevelopment() {
			r.With(limiter.Middleware).Post("/dev/token", devTokenHandler(cfg.Auth))
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))
			if mods.remember != nil {
				r.Use(mods.remember)
			}

			r.Mount("/cases", mods.cases.Routes())
			r.Mount("/investigation", mods.investigation.Routes())
			r.Mount("/rewards", mods.rewards.Routes())
			r.Mount("/reports", mods.scoring.Routes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("server shutdown error", "error", err)
		}
		close(done)
	}()

	log.Infow("precinct platform starting",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"database", app.DB != nil,
		"kurrentdb", app.Bus != nil,
		"redis", app.Cache != nil,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("server error", "error", err)
	}

	<-done
	log.Info("server stopped")
}

func infoHandler(app *App) http.HandlerFunc {
	mode := "database"
	if app.DB == nil {
		mode = "limited"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"name":    "Precinct",
			"version": "0.1.0",
			"mode":    mode,
			"docs":    "/api/v1",
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server":    "ready",
			"database":  "not configured",
			"kurrentdb": "not configured",
			"redis":     "not configured",
		}

		if app.DB != nil {
			checks["database"] = readiness(app.DB.Health(r.Context()))
		}
		if app.Bus != nil {
			checks["kurrentdb"] = readiness(app.Bus.Health())
		}
		if app.Cache != nil {
			checks["redis"] = readiness(app.Cache.Health(r.Context()))
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func readiness(err error) string {
	if err != nil {
		return "not ready: " + err.Error()
	}
	return "ready"
}

// devTokenHandler signs tokens for local testing; it is only mounted in
// development.
func devTokenHandler(cfg config.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID      string   `json:"user_id"`
			Roles       []string `json:"roles"`
			IsSuperuser bool     `json:"is_superuser"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		subject, err := parseOrNewID(req.UserID)
		if err != nil {
			http.Error(w, `{"error":"invalid user_id"}`, http.StatusBadRequest)
			return
		}
		token, err := auth.NewToken(cfg, subject, req.Roles, req.IsSuperuser)
		if err != nil {
			zap.S().Errorw("failed to sign dev token", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token":   token,
			"user_id": subject.String(),
		})
	}
}
