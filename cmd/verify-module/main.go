// Точка входа Verify Module — реестр официального содержимого
// (видео, изображения, PDF) и проверка присланных копий по отпечатку SHA-256.
// Загружает конфигурацию, открывает хранилище записей (PostgreSQL или SQLite)
// и хранилище содержимого, создаёт сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/verify-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/verify-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/verify-module/internal/blobstore"
	"github.com/bigkaa/goartstore/verify-module/internal/config"
	"github.com/bigkaa/goartstore/verify-module/internal/database"
	"github.com/bigkaa/goartstore/verify-module/internal/fetcher"
	"github.com/bigkaa/goartstore/verify-module/internal/hashing"
	"github.com/bigkaa/goartstore/verify-module/internal/repository"
	"github.com/bigkaa/goartstore/verify-module/internal/server"
	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Verify Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	ctx := context.Background()

	// 3. Хранилище записей и журнала аудита
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка открытия хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.close()

	// 4. Хранилище содержимого (local, s3, gcs)
	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		logger.Error("Ошибка создания хранилища содержимого", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer blobs.Close()
	logger.Info("Хранилище содержимого готово", slog.String("backend", blobs.Backend()))

	// 5. Загрузчик содержимого по ссылке
	linkFetcher, err := fetcher.New(fetcher.Options{
		Timeout:      cfg.FetchTimeout,
		MaxBytes:     cfg.FetchMaxBytes,
		Rate:         cfg.FetchRate,
		Burst:        cfg.FetchBurst,
		CACertPath:   cfg.CACertPath,
		AllowPrivate: cfg.FetchAllowPrivate,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания загрузчика по ссылке", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Временная директория для приёма файлов
	stager, err := hashing.NewStager(cfg.TempDir)
	if err != nil {
		logger.Error("Ошибка подготовки временной директории", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Services
	cacheSvc := service.NewCacheService(cfg.CacheMaxSize, cfg.CacheTTL)
	auditSvc := service.NewAuditService(st.audits, logger)
	registrySvc := service.NewRegistryService(st.videos, blobs, stager, cacheSvc, auditSvc, logger)
	verificationSvc := service.NewVerificationService(
		registrySvc, linkFetcher, auditSvc,
		cfg.VerifyURLPrecheck,
		logger,
	)

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL + IdP)
	var dephealthSvc *service.DephealthService
	if st.pgDB != nil {
		dephealthSvc = startDephealth(ctx, cfg, st.pgDB, logger)
	}

	// 9. JWT middleware и проверка готовности IdP.
	// Без VM_JWKS_URL — режим разработки, маршруты открыты.
	var (
		jwtAuth    *middleware.JWTAuth
		idpChecker handlers.ReadinessChecker
	)
	if cfg.AuthEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.CACertPath,
			cfg.JWTIssuer,
			cfg.RoleOfficialGroups,
			cfg.RoleFactcheckGroups,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer jwtAuth.Close()

		jwksChecker, checkerErr := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
		if checkerErr != nil {
			logger.Error("Ошибка создания IdP readiness checker", slog.String("error", checkerErr.Error()))
			os.Exit(1)
		}
		idpChecker = jwksChecker

		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("VM_JWKS_URL не задан: аутентификация отключена (режим разработки)")
	}

	// 10. API handlers
	h := server.Handlers{
		Health:  handlers.NewHealthHandler(st.checker, idpChecker),
		Videos:  handlers.NewVideosHandler(registrySvc, verificationSvc, cfg.MaxUploadSize, cfg.UploadMemory, logger),
		Records: handlers.NewRecordsHandler(registrySvc, logger),
		Audit:   handlers.NewAuditHandler(registrySvc, logger),
	}
	if local, ok := blobs.(*blobstore.LocalStore); ok {
		h.Blobs = handlers.NewBlobsHandler(local, logger)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Verify Module остановлен")
}

// store — открытое хранилище записей и журнала аудита.
type store struct {
	videos  repository.VideoRepository
	audits  repository.AuditRepository
	checker handlers.ReadinessChecker
	// pgDB — адаптер пула для topologymetrics; nil в lite-режиме
	pgDB  *sql.DB
	close func()
}

// openStore открывает хранилище записей согласно VM_STORE_BACKEND.
// PostgreSQL: миграции golang-migrate и pgxpool. SQLite: один файл, схема применяется при открытии.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, err
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
		pgDB := stdlib.OpenDBFromPool(pool)

		return &store{
			videos:  repository.NewVideoRepository(pool),
			audits:  repository.NewAuditRepository(pool),
			checker: database.NewReadinessChecker("PostgreSQL", pool),
			pgDB:    pgDB,
			close: func() {
				pgDB.Close()
				pool.Close()
			},
		}, nil

	case config.StoreBackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &store{
			videos:  repository.NewSQLiteVideoRepository(db),
			audits:  repository.NewSQLiteAuditRepository(db),
			checker: database.NewReadinessChecker("SQLite", database.SQLPinger{DB: db}),
			close:   func() { db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("неизвестный backend хранилища записей: %q", cfg.StoreBackend)
	}
}

// startDephealth запускает мониторинг зависимостей.
// Ошибка не фатальна: сервис работает без topologymetrics.
func startDephealth(ctx context.Context, cfg *config.Config, pgDB *sql.DB, logger *slog.Logger) *service.DephealthService {
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "verify-module",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("topologymetrics запущен",
		slog.String("group", cfg.DephealthGroup),
		slog.String("check_interval", cfg.DephealthCheckInterval.String()),
	)
	return dephealthSvc
}
