package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
)

// sqliteTimeLayout — формат времени фиксированной ширины (UTC):
// лексикографический порядок строк совпадает с хронологическим.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		// Записи, созданные вручную, могут быть в RFC 3339
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// sqliteVideoRepo — реализация VideoRepository для SQLite (lite-режим).
type sqliteVideoRepo struct {
	db *sql.DB
}

// NewSQLiteVideoRepository создаёт репозиторий записей реестра (SQLite).
func NewSQLiteVideoRepository(db *sql.DB) VideoRepository {
	return &sqliteVideoRepo{db: db}
}

func (r *sqliteVideoRepo) Create(ctx context.Context, rec *model.VideoRecord) error {
	query := `
		INSERT INTO video_records (verification_id, content_hash, title, authority,
			storage_url, storage_ref, original_filename, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.VerificationID, rec.ContentHash, rec.Title, rec.Authority,
		rec.StorageURL, rec.StorageRef, rec.OriginalFileName, formatSQLiteTime(rec.RegisteredAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: отпечаток %s уже зарегистрирован", ErrConflict, rec.ContentHash)
		}
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	rec.RegisteredAt = rec.RegisteredAt.UTC()
	return nil
}

func (r *sqliteVideoRepo) GetByID(ctx context.Context, verificationID string) (*model.VideoRecord, error) {
	return r.getOne(ctx, "verification_id = ?", verificationID)
}

func (r *sqliteVideoRepo) GetByHash(ctx context.Context, contentHash string) (*model.VideoRecord, error) {
	return r.getOne(ctx, "content_hash = ?", contentHash)
}

func (r *sqliteVideoRepo) GetByStorageURL(ctx context.Context, storageURL string) (*model.VideoRecord, error) {
	if storageURL == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, "storage_url = ?", storageURL)
}

func (r *sqliteVideoRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

func (r *sqliteVideoRepo) getOne(ctx context.Context, where string, arg any) (*model.VideoRecord, error) {
	query := `SELECT ` + videoColumns + `
		FROM video_records
		WHERE ` + where + `
		ORDER BY registered_at ASC
		LIMIT 1`

	rec := &model.VideoRecord{}
	var registeredAt string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.VerificationID, &rec.ContentHash, &rec.Title, &rec.Authority,
		&rec.StorageURL, &rec.StorageRef, &rec.OriginalFileName, &registeredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	rec.RegisteredAt, err = parseSQLiteTime(registeredAt)
	if err != nil {
		return nil, fmt.Errorf("некорректное время регистрации %q: %w", registeredAt, err)
	}
	return rec, nil
}

// sqliteAuditRepo — реализация AuditRepository для SQLite (lite-режим).
type sqliteAuditRepo struct {
	db *sql.DB
}

// NewSQLiteAuditRepository создаёт репозиторий журнала аудита (SQLite).
func NewSQLiteAuditRepository(db *sql.DB) AuditRepository {
	return &sqliteAuditRepo{db: db}
}

func (r *sqliteAuditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	query := `
		INSERT INTO audit_log (action_type, actor_role, reference_id, result,
			verification_source, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		string(e.ActionType), e.ActorRole, nullIfEmpty(e.ReferenceID),
		nullIfEmpty(string(e.Result)), nullIfEmpty(string(e.Source)),
		nullIfEmpty(e.Details), formatSQLiteTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал аудита: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения ID записи журнала: %w", err)
	}
	e.ID = id
	e.Timestamp = e.Timestamp.UTC()
	return nil
}

func (r *sqliteAuditRepo) List(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	query := `
		SELECT id, action_type, actor_role, reference_id, result,
			verification_source, details, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала аудита: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var (
			e                              model.AuditEntry
			action, createdAt              string
			refID, result, source, details sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.ActorRole, &refID, &result,
			&source, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		e.ActionType = model.ActionType(action)
		e.ReferenceID = refID.String
		e.Result = model.Result(result.String)
		e.Source = model.Source(source.String)
		e.Details = details.String
		if e.Timestamp, err = parseSQLiteTime(createdAt); err != nil {
			return nil, fmt.Errorf("некорректное время записи журнала %q: %w", createdAt, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации журнала аудита: %w", err)
	}
	return entries, nil
}
