package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/mindengage-ujian/internal/api/http"
	auth "github.com/mind-engage/mindengage-ujian/internal/auth/middleware"
	"github.com/mind-engage/mindengage-ujian/internal/config"
	"github.com/mind-engage/mindengage-ujian/internal/db"
	"github.com/mind-engage/mindengage-ujian/internal/exam"
	rbac "github.com/mind-engage/mindengage-ujian/internal/rbac"
	syncx "github.com/mind-engage/mindengage-ujian/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.AttemptEvents{Repo: syncx.NewEventRepo(dbh), SiteID: cfg.SiteID}
	svc := exam.NewService(store, exam.WithEvents(events))

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(cfg, dbh, svc, authSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (mode=%s, db=%s, site=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.SiteID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func newRouter(cfg config.Config, dbh *sql.DB, svc *exam.Service, authSvc *auth.AuthService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginOptions{
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
			DevLogins:     cfg.Mode == config.ModeOffline,
		}))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require(rbac.PermCreate)).
			Put("/ujian", api.PutExamHandler(svc))
		pr.With(rbac.Require(rbac.PermTake)).
			Get("/ujian/available", api.ListAvailableHandler(svc))
		pr.With(rbac.Require(rbac.PermTake)).
			Post("/ujian/{examID}/start", api.StartAttemptHandler(svc))

		pr.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).
			Get("/attempts", api.ListAttemptsHandler(svc))
		pr.Route("/attempts/{attemptID}", func(ar chi.Router) {
			ar.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).Get("/", api.ResumeAttemptHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/answers", api.SubmitAnswerHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/complete", api.CompleteAttemptHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Post("/abandon", api.AbandonAttemptHandler(svc))
			ar.With(rbac.RequireAny(rbac.PermViewOwn, rbac.PermViewAll)).Get("/result", api.ResultHandler(svc))
			ar.With(rbac.Require(rbac.PermTake)).Get("/preview", api.PreviewHandler(svc))
		})

		pr.With(rbac.Require(rbac.PermAbandonAny)).
			Post("/admin/attempts/{attemptID}/abandon", api.AdminAbandonAttemptHandler(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
