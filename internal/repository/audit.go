package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
)

// AuditRepository — доступ к журналу аудита (append-only).
type AuditRepository interface {
	// Append добавляет запись журнала и заполняет её ID.
	Append(ctx context.Context, entry *model.AuditEntry) error
	// List возвращает записи от новых к старым. limit <= 0 — без ограничения.
	List(ctx context.Context, limit int) ([]*model.AuditEntry, error)
}

// auditRepo — реализация AuditRepository для PostgreSQL.
type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита (PostgreSQL).
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	query := `
		INSERT INTO audit_log (action_type, actor_role, reference_id, result,
			verification_source, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		string(e.ActionType), e.ActorRole, nullIfEmpty(e.ReferenceID),
		nullIfEmpty(string(e.Result)), nullIfEmpty(string(e.Source)),
		nullIfEmpty(e.Details), e.Timestamp,
	).Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	return nil
}

func (r *auditRepo) List(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	query := `
		SELECT id, action_type, actor_role, reference_id, result,
			verification_source, details, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var (
			e                              model.AuditEntry
			action                         string
			refID, result, source, details *string
		)
		if err := rows.Scan(&e.ID, &action, &e.ActorRole, &refID, &result,
			&source, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		e.ActionType = model.ActionType(action)
		e.ReferenceID = derefString(refID)
		e.Result = model.Result(derefString(result))
		e.Source = model.Source(derefString(source))
		e.Details = derefString(details)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации журнала аудита: %w", err)
	}
	return entries, nil
}
