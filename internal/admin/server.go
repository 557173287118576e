package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/admin/auth"
	"akeeper.ru/botpanel/internal/config"
	"akeeper.ru/botpanel/internal/db/postgres"
)

// scopeRunner выполняет функцию в рамках одной транзакции БД.
type scopeRunner interface {
	Run(ctx context.Context, fn func(postgres.Querier) error) error
}

// Server — HTTP-сервер админ-консоли.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	scope      scopeRunner
	pool       *pgxpool.Pool
	provider   *auth.Provider
}

// NewServer собирает маршруты и middleware консоли.
func NewServer(cfg *config.Config, scope scopeRunner, pool *pgxpool.Pool, provider *auth.Provider) *Server {
	s := &Server{
		cfg:      cfg,
		scope:    scope,
		pool:     pool,
		provider: provider,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(requestLogger)
	router.Use(chimw.Recoverer)

	router.Get("/healthcheck", s.handleHealthcheck)

	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handle(s.handleLogin))
		r.Post("/logout", s.authed(s.handleLogout))
		r.Get("/flash", s.authed(s.handleFlash))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.authed(s.handleUserList))
			r.Patch("/{id}", s.authed(s.handleUserEdit))
			r.Delete("/{id}", s.authed(s.handleUserDelete))
		})

		r.Route("/admins", func(r chi.Router) {
			r.Get("/", s.authed(s.handleAdminList))
			r.Post("/", s.authed(s.handleAdminCreate))
			r.Patch("/{id}", s.authed(s.handleAdminEdit))
			r.Delete("/{id}", s.authed(s.handleAdminDelete))
			r.Post("/{id}/reset_password", s.authed(s.handleAdminResetPassword))
		})
	})

	s.httpServer = &http.Server{
		Addr:         cfg.AdminHTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start блокируется до остановки сервера.
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("Админ-консоль запущена")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown мягко останавливает сервер: новые запросы не принимаются,
// текущие дорабатывают до конца.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger пишет строку на каждый запрос после его завершения.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": chimw.GetReqID(r.Context()),
		}).Info("HTTP-запрос обработан")
	})
}
