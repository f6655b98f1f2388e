// audit.go — журнал аудита: запись событий и чтение ленты.
// Ошибка записи в журнал не меняет результат основной операции:
// она логируется и учитывается в метрике.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
	"github.com/bigkaa/goartstore/verify-module/internal/repository"
)

// defaultAuditWriteTimeout — таймаут записи одной записи журнала.
const defaultAuditWriteTimeout = 5 * time.Second

var auditWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vm_audit_writes_total",
	Help: "Количество записей в журнал аудита по результату (ok, error).",
}, []string{"result"})

// AuditService — запись и чтение журнала аудита.
type AuditService struct {
	repo         repository.AuditRepository
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewAuditService создаёт сервис журнала аудита.
func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:         repo,
		writeTimeout: defaultAuditWriteTimeout,
		logger:       logger.With(slog.String("component", "audit_service")),
	}
}

// Record добавляет запись в журнал. Контекст вызывающего отвязывается от
// отмены: операция уже завершилась, и её событие должно попасть в журнал,
// даже если клиент отключился.
func (s *AuditService) Record(ctx context.Context, entry *model.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.repo.Append(writeCtx, entry); err != nil {
		auditWritesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Не удалось записать событие в журнал аудита",
			slog.String("action_type", string(entry.ActionType)),
			slog.String("result", string(entry.Result)),
			slog.String("reference_id", entry.ReferenceID),
			slog.String("error", err.Error()),
		)
		return
	}
	auditWritesTotal.WithLabelValues("ok").Inc()
}

// List возвращает записи журнала, новые первыми. limit <= 0 — без ограничения.
func (s *AuditService) List(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	entries, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение журнала аудита: %v", ErrStorage, err)
	}
	return entries, nil
}
