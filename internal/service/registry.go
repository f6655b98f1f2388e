// registry.go — реестр официальных записей: регистрация содержимого
// и поиск записей по идентификатору, отпечатку и адресу хранения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/verify-module/internal/blobstore"
	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
	"github.com/bigkaa/goartstore/verify-module/internal/hashing"
	"github.com/bigkaa/goartstore/verify-module/internal/repository"
)

// cleanupTimeout — таймаут удаления осиротевшего объекта.
const cleanupTimeout = 10 * time.Second

// Prometheus-метрики регистрации.
var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_registrations_total",
		Help: "Количество регистраций по виду входных данных и исходу (created, duplicate, error).",
	}, []string{"kind", "outcome"})
	registrationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vm_registration_duration_seconds",
		Help:    "Длительность регистрации содержимого.",
		Buckets: prometheus.DefBuckets,
	})
	blobFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_blob_fallback_total",
		Help: "Регистрации, сохранённые со ссылкой вызывающего вместо объекта в хранилище.",
	})
)

// RegistrationResult — результат регистрации.
type RegistrationResult struct {
	// Record — новая или ранее существовавшая запись
	Record *model.VideoRecord
	// Created — false, если содержимое уже было зарегистрировано
	Created bool
}

// RegistryService — регистрация официального содержимого и поиск записей.
type RegistryService struct {
	videos repository.VideoRepository
	blobs  blobstore.Store
	stager *hashing.Stager
	cache  *CacheService
	audit  *AuditService
	logger *slog.Logger
}

// NewRegistryService создаёт сервис реестра.
func NewRegistryService(
	videos repository.VideoRepository,
	blobs blobstore.Store,
	stager *hashing.Stager,
	cache *CacheService,
	audit *AuditService,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		videos: videos,
		blobs:  blobs,
		stager: stager,
		cache:  cache,
		audit:  audit,
		logger: logger.With(slog.String("component", "registry_service")),
	}
}

// Register регистрирует содержимое (файл, ссылку или только метаданные).
//
// Для файла отпечаток считается по содержимому; если такой отпечаток уже
// есть в реестре, возвращается существующая запись (Created = false).
// Для ссылки и метаданных отпечаток — случайный заполнитель, такие записи
// никогда не совпадут при проверке по содержимому.
//
// Ошибки валидации отклоняются до побочных эффектов и не попадают в журнал.
func (s *RegistryService) Register(ctx context.Context, in model.RegistrationInput) (*RegistrationResult, error) {
	start := time.Now()
	kind := in.Kind()

	in.Title = strings.TrimSpace(in.Title)
	in.Authority = strings.TrimSpace(in.Authority)
	in.Link = strings.TrimSpace(in.Link)

	if err := validateRegistration(in); err != nil {
		registrationsTotal.WithLabelValues(kind.String(), "rejected").Inc()
		return nil, err
	}

	var (
		result *RegistrationResult
		err    error
	)
	switch kind {
	case model.RegisterPayload:
		result, err = s.registerPayload(ctx, in)
	case model.RegisterLink:
		result, err = s.registerWithoutContent(ctx, in, in.Link, model.FileNameImportedFromURL)
	default:
		result, err = s.registerWithoutContent(ctx, in, "", model.FileNameMetadataOnly)
	}
	registrationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrValidation) {
			outcome = "rejected"
		}
		registrationsTotal.WithLabelValues(kind.String(), outcome).Inc()
		return nil, err
	}

	outcome := "created"
	source, channel := registrationSource(kind)
	details := fmt.Sprintf("Uploaded: %s (Source: %s)", in.Title, channel)
	if !result.Created {
		outcome = "duplicate"
		details += ", already registered"
	}
	registrationsTotal.WithLabelValues(kind.String(), outcome).Inc()

	s.audit.Record(ctx, &model.AuditEntry{
		ActionType:  model.ActionUpload,
		ActorRole:   actorOrDefault(in.ActorRole, model.ActorOfficialAuthority),
		ReferenceID: result.Record.VerificationID,
		Result:      model.ResultRegistered,
		Source:      source,
		Details:     details,
	})

	s.logger.Info("Содержимое зарегистрировано",
		slog.String("verification_id", result.Record.VerificationID),
		slog.String("kind", kind.String()),
		slog.Bool("created", result.Created),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// registerPayload — регистрация загруженного файла.
func (s *RegistryService) registerPayload(ctx context.Context, in model.RegistrationInput) (*RegistrationResult, error) {
	staged, err := s.stager.Stage(in.Payload.Body)
	if err != nil {
		if errors.Is(err, hashing.ErrRead) {
			return nil, fmt.Errorf("%w: содержимое файла не удалось прочитать: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: промежуточное сохранение файла: %v", ErrStorage, err)
	}
	defer func() {
		if rmErr := staged.Remove(); rmErr != nil {
			s.logger.Warn("Не удалось удалить временный файл",
				slog.String("path", staged.Path),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	existing, err := s.FindByHash(ctx, staged.Digest)
	switch {
	case err == nil:
		s.logger.Debug("Содержимое уже зарегистрировано",
			slog.String("hash", staged.Digest),
			slog.String("verification_id", existing.VerificationID),
		)
		return &RegistrationResult{Record: existing, Created: false}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	obj, err := s.putBlob(ctx, staged, in.Payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if in.Link == "" {
			return nil, fmt.Errorf("%w: сохранение содержимого: %v", ErrStorage, err)
		}
		blobFallbackTotal.Inc()
		s.logger.Warn("Хранилище содержимого недоступно, используется ссылка вызывающего",
			slog.String("backend", s.blobs.Backend()),
			slog.String("link", in.Link),
			slog.String("error", err.Error()),
		)
		obj = &blobstore.Object{URL: in.Link}
	}

	rec := &model.VideoRecord{
		VerificationID:   uuid.NewString(),
		ContentHash:      staged.Digest,
		Title:            in.Title,
		Authority:        in.Authority,
		StorageURL:       obj.URL,
		StorageRef:       obj.Ref,
		OriginalFileName: in.Payload.FileName,
		RegisteredAt:     time.Now().UTC(),
	}

	if err := ctx.Err(); err != nil {
		s.deleteBlob(ctx, obj.Ref)
		return nil, err
	}

	if err := s.videos.Create(ctx, rec); err != nil {
		s.deleteBlob(ctx, obj.Ref)
		if errors.Is(err, repository.ErrConflict) {
			// Параллельная регистрация того же содержимого успела раньше.
			winner, findErr := s.videos.GetByHash(ctx, staged.Digest)
			if findErr != nil {
				return nil, fmt.Errorf("%w: поиск записи после конфликта: %v", ErrStorage, findErr)
			}
			s.cache.Set(winner)
			return &RegistrationResult{Record: winner, Created: false}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: создание записи: %v", ErrStorage, err)
	}

	s.cache.Set(rec)
	return &RegistrationResult{Record: rec, Created: true}, nil
}

// registerWithoutContent — регистрация ссылки или только метаданных
// со случайным отпечатком-заполнителем.
func (s *RegistryService) registerWithoutContent(
	ctx context.Context,
	in model.RegistrationInput,
	storageURL string,
	fileName string,
) (*RegistrationResult, error) {
	placeholder, err := hashing.PlaceholderDigest()
	if err != nil {
		return nil, fmt.Errorf("%w: генерация отпечатка: %v", ErrStorage, err)
	}

	rec := &model.VideoRecord{
		VerificationID:   uuid.NewString(),
		ContentHash:      placeholder,
		Title:            in.Title,
		Authority:        in.Authority,
		StorageURL:       storageURL,
		OriginalFileName: fileName,
		RegisteredAt:     time.Now().UTC(),
	}
	if err := s.videos.Create(ctx, rec); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: создание записи: %v", ErrStorage, err)
	}

	s.cache.Set(rec)
	return &RegistrationResult{Record: rec, Created: true}, nil
}

// putBlob сохраняет промежуточный файл в хранилище содержимого.
func (s *RegistryService) putBlob(ctx context.Context, staged *hashing.Staged, payload *model.Payload) (*blobstore.Object, error) {
	f, err := staged.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return s.blobs.Put(ctx, f, payload.FileName, payload.ContentType)
}

// deleteBlob удаляет объект, на который не ссылается ни одна запись.
// Ошибка только логируется: объект останется сиротой, но реестр согласован.
func (s *RegistryService) deleteBlob(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(delCtx, ref); err != nil {
		s.logger.Warn("Не удалось удалить осиротевший объект",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
}

// FindByHash возвращает запись по отпечатку содержимого.
// Строка не в формате SHA-256 hex не может совпасть ни с одной записью.
func (s *RegistryService) FindByHash(ctx context.Context, contentHash string) (*model.VideoRecord, error) {
	if !hashing.IsDigest(contentHash) {
		return nil, ErrNotFound
	}
	if rec, ok := s.cache.GetByHash(contentHash); ok {
		return rec, nil
	}
	rec, err := s.videos.GetByHash(ctx, contentHash)
	if err != nil {
		return nil, mapRepoError(err, "поиск по отпечатку")
	}
	s.cache.Set(rec)
	return rec, nil
}

// FindByID возвращает запись по verificationId.
// Строка, не являющаяся UUID, не может быть идентификатором — сразу ErrNotFound.
// Регистр и форма записи UUID приводятся к канонической.
func (s *RegistryService) FindByID(ctx context.Context, verificationID string) (*model.VideoRecord, error) {
	parsed, err := uuid.Parse(verificationID)
	if err != nil {
		return nil, ErrNotFound
	}
	verificationID = parsed.String()
	if rec, ok := s.cache.GetByID(verificationID); ok {
		return rec, nil
	}
	rec, err := s.videos.GetByID(ctx, verificationID)
	if err != nil {
		return nil, mapRepoError(err, "поиск по идентификатору")
	}
	s.cache.Set(rec)
	return rec, nil
}

// FindByStorageURL возвращает запись с точно совпадающим storageUrl.
func (s *RegistryService) FindByStorageURL(ctx context.Context, storageURL string) (*model.VideoRecord, error) {
	rec, err := s.videos.GetByStorageURL(ctx, storageURL)
	if err != nil {
		return nil, mapRepoError(err, "поиск по адресу хранения")
	}
	return rec, nil
}

// ListAuditEntries возвращает журнал аудита, новые записи первыми.
func (s *RegistryService) ListAuditEntries(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	return s.audit.List(ctx, limit)
}

// validateRegistration проверяет обязательные поля и формат ссылки.
func validateRegistration(in model.RegistrationInput) error {
	if in.Title == "" {
		return fmt.Errorf("%w: title обязателен", ErrValidation)
	}
	if in.Authority == "" {
		return fmt.Errorf("%w: authority обязателен", ErrValidation)
	}
	if in.Link != "" && !isHTTPURL(in.Link) {
		return fmt.Errorf("%w: link должен быть абсолютным http(s) URL", ErrValidation)
	}
	if in.Payload != nil && in.Payload.Body == nil {
		return fmt.Errorf("%w: пустой файл", ErrValidation)
	}
	return nil
}

// isHTTPURL — абсолютный URL со схемой http или https и хостом.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// registrationSource — канал регистрации для журнала аудита.
func registrationSource(kind model.RegistrationKind) (model.Source, string) {
	switch kind {
	case model.RegisterPayload:
		return model.SourceFile, "File"
	case model.RegisterLink:
		return model.SourceURL, "Link"
	default:
		return "", "Metadata"
	}
}

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoError(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// actorOrDefault возвращает метку роли или значение по умолчанию.
func actorOrDefault(actor, def string) string {
	if actor == "" {
		return def
	}
	return actor
}
