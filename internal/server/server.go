// Пакет server — HTTP-сервер Verify Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/verify-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/verify-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/verify-module/internal/config"
	"github.com/bigkaa/goartstore/verify-module/internal/domain/rbac"
)

// Handlers — набор обработчиков, подключаемых к маршрутам.
// Blobs может быть nil (хранилище содержимого не локальное).
type Handlers struct {
	Health  *handlers.HealthHandler
	Videos  *handlers.VideosHandler
	Records *handlers.RecordsHandler
	Audit   *handlers.AuditHandler
	Blobs   *handlers.BlobsHandler
}

// Server — HTTP-сервер Verify Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth == nil — режим разработки: аутентификация и проверка ролей отключены.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, h, jwtAuth),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами.
func NewRouter(logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.AccessLog(logger))

	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Публичные маршруты: карточка записи и скачивание объекта.
	router.Get("/api/v1/records/{verification_id}", h.Records.GetRecord)
	if h.Blobs != nil {
		router.Get("/blobs/{ref}", h.Blobs.GetBlob)
	}

	router.Group(func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.With(requireRole(jwtAuth, rbac.RoleOfficial)).
			Post("/api/v1/videos/upload", h.Videos.Upload)
		r.With(requireRole(jwtAuth, rbac.RoleFactcheck)).
			Post("/api/v1/videos/verify", h.Videos.Verify)
		r.With(requireRole(jwtAuth, rbac.RoleFactcheck, rbac.RoleOfficial)).
			Get("/api/v1/audit-logs", h.Audit.ListAuditLogs)
	})

	return router
}

// requireRole возвращает проверку ролей или пропускающий middleware,
// если аутентификация отключена.
func requireRole(jwtAuth *middleware.JWTAuth, roles ...string) func(http.Handler) http.Handler {
	if jwtAuth == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireRole(roles...)
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
