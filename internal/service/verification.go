// verification.go — проверка подлинности содержимого по идентификатору,
// по ссылке или по загруженному файлу. Каждая завершённая проверка
// оставляет ровно одну запись в журнале аудита.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
	"github.com/bigkaa/goartstore/verify-module/internal/hashing"
)

// Сообщения результатов проверки.
const (
	MessageNotFound = "Официальная запись не найдена. Содержимое может быть неофициальным или изменённым."
	// MessageNotFoundLink — несовпадение по ссылке не доказывает подделку:
	// площадки перекодируют видео, и отпечаток меняется.
	MessageNotFoundLink = "Официальная запись по ссылке не найдена. Видеоплощадки часто перекодируют " +
		"загруженные ролики, поэтому отпечаток может не совпасть даже для подлинного видео. " +
		"Для точной проверки загрузите исходный файл."
	MessageModified = "Содержимое похоже на изменённую или обрезанную версию официальной записи."
)

// modifiedMarker — подстрока имени файла, по которой содержимое
// считается изменённой версией (учебная эвристика).
const modifiedMarker = "modified"

// Prometheus-метрики проверки.
var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_verifications_total",
		Help: "Количество проверок по стратегии и результату.",
	}, []string{"source", "status"})
	verificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vm_verification_duration_seconds",
		Help:    "Длительность проверки по стратегии.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)

// LinkFetcher загружает содержимое по ссылке.
type LinkFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// VerificationService — проверка содержимого по реестру.
type VerificationService struct {
	registry    *RegistryService
	fetcher     LinkFetcher
	audit       *AuditService
	urlPrecheck bool
	logger      *slog.Logger
}

// NewVerificationService создаёт сервис проверки.
// urlPrecheck включает поиск ссылки среди storageUrl зарегистрированных
// записей до загрузки содержимого.
func NewVerificationService(
	registry *RegistryService,
	fetcher LinkFetcher,
	audit *AuditService,
	urlPrecheck bool,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		registry:    registry,
		fetcher:     fetcher,
		audit:       audit,
		urlPrecheck: urlPrecheck,
		logger:      logger.With(slog.String("component", "verification_service")),
	}
}

// Verify проверяет содержимое по цепочке стратегий: идентификатор,
// ссылка (только без файла), файл. Промах по идентификатору не окончателен:
// проверка продолжается следующей стратегией, а в журнал попадает
// последняя выполненная.
//
// Результат NOT_FOUND и MODIFIED — не ошибка. Ошибкой возвращаются
// отсутствие входных данных (ErrValidation), недоступность реестра
// (ErrStorage) и отмена запроса. Отмена во время загрузки по ссылке
// всё равно оставляет запись NOT_FOUND в журнале.
func (s *VerificationService) Verify(ctx context.Context, in model.VerificationInput) (*model.VerificationOutcome, error) {
	strategies := in.Strategies()
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: требуется verificationId, link или файл", ErrValidation)
	}

	start := time.Now()
	var (
		outcome  *model.VerificationOutcome
		strategy model.Source
		details  string
		err      error
	)
	for i, next := range strategies {
		strategy = next
		attemptStart := time.Now()
		outcome, details, err = s.attempt(ctx, strategy, in)
		verificationDuration.WithLabelValues(string(strategy)).Observe(time.Since(attemptStart).Seconds())

		last := i == len(strategies)-1
		if err != nil || last || strategy != model.SourceID || outcome.Status != model.ResultNotFound {
			break
		}
		s.logger.Debug("Идентификатор не найден, проверка продолжается",
			slog.String("verification_id", outcome.ReferenceID),
			slog.String("next_source", string(strategies[i+1])),
		)
	}

	if err != nil && outcome == nil {
		verificationsTotal.WithLabelValues(string(strategy), "error").Inc()
		return nil, err
	}
	outcome.Source = strategy
	verificationsTotal.WithLabelValues(string(strategy), string(outcome.Status)).Inc()

	s.audit.Record(ctx, &model.AuditEntry{
		ActionType:  model.ActionVerify,
		ActorRole:   actorOrDefault(in.ActorRole, model.ActorFactChecker),
		ReferenceID: outcome.ReferenceID,
		Result:      outcome.Status,
		Source:      strategy,
		Details:     details,
	})

	if err != nil {
		s.logger.Warn("Проверка прервана",
			slog.String("source", string(strategy)),
			slog.String("reference_id", outcome.ReferenceID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Проверка выполнена",
		slog.String("source", string(strategy)),
		slog.String("status", string(outcome.Status)),
		slog.String("reference_id", outcome.ReferenceID),
		slog.Duration("duration", time.Since(start)),
	)

	return outcome, nil
}

// attempt выполняет одну стратегию и возвращает итог вместе с текстом
// для поля details журнала.
func (s *VerificationService) attempt(
	ctx context.Context,
	strategy model.Source,
	in model.VerificationInput,
) (*model.VerificationOutcome, string, error) {
	switch strategy {
	case model.SourceID:
		id := strings.TrimSpace(in.VerificationID)
		outcome, err := s.verifyByID(ctx, id)
		return outcome, "Manual ID: " + id, err
	case model.SourceURL:
		link := strings.TrimSpace(in.Link)
		outcome, err := s.verifyByLink(ctx, link)
		return outcome, "Link: " + link, err
	default:
		outcome, err := s.verifyByFile(ctx, in.Payload)
		return outcome, "File: " + in.Payload.FileName, err
	}
}

// verifyByID — поиск записи по verificationId.
func (s *VerificationService) verifyByID(ctx context.Context, id string) (*model.VerificationOutcome, error) {
	rec, err := s.registry.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(id, MessageNotFound), nil
		}
		return nil, err
	}
	return verified(rec), nil
}

// verifyByLink — точное совпадение ссылки с storageUrl, затем загрузка
// содержимого и поиск по отпечатку. Ошибка загрузки даёт NOT_FOUND;
// если запрос отменён, вместе с итогом возвращается ошибка контекста.
func (s *VerificationService) verifyByLink(ctx context.Context, link string) (*model.VerificationOutcome, error) {
	if s.urlPrecheck {
		rec, err := s.registry.FindByStorageURL(ctx, link)
		switch {
		case err == nil:
			return verified(rec), nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	data, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return notFound(link, MessageNotFoundLink), ctxErr
		}
		s.logger.Warn("Не удалось загрузить содержимое по ссылке",
			slog.String("link", link),
			slog.String("error", err.Error()),
		)
		return notFound(link, MessageNotFoundLink), nil
	}

	digest, err := hashing.ComputeDigest(hashing.FromBytes(data))
	if err != nil {
		return nil, fmt.Errorf("%w: вычисление отпечатка: %v", ErrStorage, err)
	}
	return s.matchDigest(ctx, digest, MessageNotFoundLink)
}

// verifyByFile — поиск по отпечатку загруженного файла.
// Имя файла с подстрокой "modified" даёт MODIFIED без вычисления отпечатка.
func (s *VerificationService) verifyByFile(ctx context.Context, payload *model.Payload) (*model.VerificationOutcome, error) {
	if strings.Contains(strings.ToLower(payload.FileName), modifiedMarker) {
		return &model.VerificationOutcome{
			Status:      model.ResultModified,
			Message:     MessageModified,
			ReferenceID: model.ReferenceUnknown,
		}, nil
	}
	if payload.Body == nil {
		return nil, fmt.Errorf("%w: пустой файл", ErrValidation)
	}

	digest, err := hashing.ComputeDigest(hashing.FromReader(payload.Body))
	if err != nil {
		if errors.Is(err, hashing.ErrRead) {
			return nil, fmt.Errorf("%w: содержимое файла не удалось прочитать: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: вычисление отпечатка: %v", ErrStorage, err)
	}
	return s.matchDigest(ctx, digest, MessageNotFound)
}

// matchDigest ищет запись по отпечатку; при промахе ReferenceID — сам отпечаток.
func (s *VerificationService) matchDigest(ctx context.Context, digest, missMessage string) (*model.VerificationOutcome, error) {
	rec, err := s.registry.FindByHash(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(digest, missMessage), nil
		}
		return nil, err
	}
	return verified(rec), nil
}

func verified(rec *model.VideoRecord) *model.VerificationOutcome {
	return &model.VerificationOutcome{
		Status:      model.ResultVerified,
		Record:      rec,
		ReferenceID: rec.VerificationID,
	}
}

func notFound(reference, message string) *model.VerificationOutcome {
	if reference == "" {
		reference = model.ReferenceUnknown
	}
	return &model.VerificationOutcome{
		Status:      model.ResultNotFound,
		Message:     message,
		ReferenceID: reference,
	}
}
