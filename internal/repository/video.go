package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
)

// VideoRepository — доступ к таблице video_records.
// Записи только добавляются: обновление и удаление не предусмотрены.
type VideoRepository interface {
	// Create сохраняет новую запись. Дубликат отпечатка — ErrConflict.
	Create(ctx context.Context, rec *model.VideoRecord) error
	// GetByID возвращает запись по verificationId.
	GetByID(ctx context.Context, verificationID string) (*model.VideoRecord, error)
	// GetByHash возвращает запись по отпечатку содержимого.
	GetByHash(ctx context.Context, contentHash string) (*model.VideoRecord, error)
	// GetByStorageURL возвращает самую раннюю запись с указанным storageUrl.
	GetByStorageURL(ctx context.Context, storageURL string) (*model.VideoRecord, error)
	// Count возвращает количество записей в реестре.
	Count(ctx context.Context) (int64, error)
}

// videoColumns — список колонок для SELECT-запросов.
const videoColumns = `verification_id, content_hash, title, authority,
	storage_url, storage_ref, original_filename, registered_at`

// videoRepo — реализация VideoRepository для PostgreSQL.
type videoRepo struct {
	db DBTX
}

// NewVideoRepository создаёт репозиторий записей реестра (PostgreSQL).
func NewVideoRepository(db DBTX) VideoRepository {
	return &videoRepo{db: db}
}

func (r *videoRepo) Create(ctx context.Context, rec *model.VideoRecord) error {
	query := `
		INSERT INTO video_records (verification_id, content_hash, title, authority,
			storage_url, storage_ref, original_filename, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING registered_at`

	err := r.db.QueryRow(ctx, query,
		rec.VerificationID, rec.ContentHash, rec.Title, rec.Authority,
		rec.StorageURL, rec.StorageRef, rec.OriginalFileName, rec.RegisteredAt,
	).Scan(&rec.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: отпечаток %s уже зарегистрирован", ErrConflict, rec.ContentHash)
		}
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, verificationID string) (*model.VideoRecord, error) {
	return r.getOne(ctx, "verification_id = $1", verificationID)
}

func (r *videoRepo) GetByHash(ctx context.Context, contentHash string) (*model.VideoRecord, error) {
	return r.getOne(ctx, "content_hash = $1", contentHash)
}

func (r *videoRepo) GetByStorageURL(ctx context.Context, storageURL string) (*model.VideoRecord, error) {
	if storageURL == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, "storage_url = $1", storageURL)
}

func (r *videoRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM video_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return n, nil
}

// getOne выбирает одну запись по условию where (ровно один параметр $1).
func (r *videoRepo) getOne(ctx context.Context, where string, arg any) (*model.VideoRecord, error) {
	query := `SELECT ` + videoColumns + `
		FROM video_records
		WHERE ` + where + `
		ORDER BY registered_at ASC
		LIMIT 1`

	rec := &model.VideoRecord{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&rec.VerificationID, &rec.ContentHash, &rec.Title, &rec.Authority,
		&rec.StorageURL, &rec.StorageRef, &rec.OriginalFileName, &rec.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidTextRepresentation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}
