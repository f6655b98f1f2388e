// videos.go — регистрация и проверка содержимого.
// POST /api/v1/videos/upload — регистрация (multipart: title, authority, link, file или videoFile)
// POST /api/v1/videos/verify — проверка (multipart, JSON или form: verificationId, link, file)
package handlers

import (
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/verify-module/internal/api/errors"
	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
	"github.com/bigkaa/goartstore/verify-module/internal/domain/rbac"
	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

// Сообщения ответа регистрации.
const (
	msgRegistered        = "Официальная запись зарегистрирована"
	msgAlreadyRegistered = "Содержимое уже зарегистрировано"
)

// maxJSONBody — лимит JSON-тела запроса проверки.
const maxJSONBody = 64 << 10

// VideosHandler — обработчик регистрации и проверки.
type VideosHandler struct {
	registry      *service.RegistryService
	verifier      *service.VerificationService
	maxUploadSize int64
	uploadMemory  int64
	logger        *slog.Logger
}

// NewVideosHandler создаёт обработчик.
// maxUploadSize — лимит тела multipart-запроса, uploadMemory — часть формы в памяти.
func NewVideosHandler(
	registry *service.RegistryService,
	verifier *service.VerificationService,
	maxUploadSize, uploadMemory int64,
	logger *slog.Logger,
) *VideosHandler {
	return &VideosHandler{
		registry:      registry,
		verifier:      verifier,
		maxUploadSize: maxUploadSize,
		uploadMemory:  uploadMemory,
		logger:        logger.With(slog.String("component", "videos_handler")),
	}
}

// registerData — данные ответа регистрации.
type registerData struct {
	VerificationID string    `json:"verificationId"`
	Hash           string    `json:"hash"`
	Timestamp      time.Time `json:"timestamp"`
	URL            string    `json:"url"`
}

// registerResponse — ответ регистрации.
type registerResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    registerData `json:"data"`
}

// verifiedData — данные найденной записи в ответе проверки.
type verifiedData struct {
	VerificationID string    `json:"verificationId"`
	Title          string    `json:"title"`
	Authority      string    `json:"authority"`
	Timestamp      time.Time `json:"timestamp"`
	URL            string    `json:"url"`
}

// verifyResponse — ответ проверки.
type verifyResponse struct {
	Status  model.Result  `json:"status"`
	Data    *verifiedData `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// verifyJSONRequest — тело JSON-запроса проверки (без файла).
type verifyJSONRequest struct {
	VerificationID string `json:"verificationId"`
	Link           string `json:"link"`
}

// Upload обрабатывает POST /api/v1/videos/upload.
// 201 — новая запись, 200 — содержимое уже было зарегистрировано.
func (h *VideosHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.uploadMemory); err != nil {
		writeBodyError(w, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	payload, closeFile, ok := h.formPayload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	result, err := h.registry.Register(r.Context(), model.RegistrationInput{
		Title:     r.FormValue("title"),
		Authority: r.FormValue("authority"),
		Link:      r.FormValue("link"),
		Payload:   payload,
		ActorRole: rbac.ActorLabel(rbac.RoleOfficial),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status, message := http.StatusCreated, msgRegistered
	if !result.Created {
		status, message = http.StatusOK, msgAlreadyRegistered
	}

	writeJSON(w, status, registerResponse{
		Success: true,
		Message: message,
		Data: registerData{
			VerificationID: result.Record.VerificationID,
			Hash:           result.Record.ContentHash,
			Timestamp:      result.Record.RegisteredAt,
			URL:            result.Record.StorageURL,
		},
	})
}

// Verify обрабатывает POST /api/v1/videos/verify.
// VERIFIED, MODIFIED и NOT_FOUND — успешные ответы 200.
func (h *VideosHandler) Verify(w http.ResponseWriter, r *http.Request) {
	in := model.VerificationInput{ActorRole: rbac.ActorLabel(rbac.RoleFactcheck)}

	switch {
	case isMultipart(r):
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
		if err := r.ParseMultipartForm(h.uploadMemory); err != nil {
			writeBodyError(w, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		payload, closeFile, ok := h.formPayload(w, r)
		if !ok {
			return
		}
		defer closeFile()

		in.VerificationID = r.FormValue("verificationId")
		in.Link = r.FormValue("link")
		in.Payload = payload

	case isJSON(r):
		var req verifyJSONRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err := dec.Decode(&req); err != nil {
			writeBodyError(w, err)
			return
		}
		in.VerificationID = req.VerificationID
		in.Link = req.Link

	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			writeBodyError(w, err)
			return
		}
		in.VerificationID = r.PostFormValue("verificationId")
		in.Link = r.PostFormValue("link")
	}

	outcome, err := h.verifier.Verify(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := verifyResponse{Status: outcome.Status, Message: outcome.Message}
	if outcome.Record != nil {
		resp.Data = &verifiedData{
			VerificationID: outcome.Record.VerificationID,
			Title:          outcome.Record.Title,
			Authority:      outcome.Record.Authority,
			Timestamp:      outcome.Record.RegisteredAt,
			URL:            outcome.Record.StorageURL,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Имена файлового поля multipart-формы. videoFile — прежнее имя,
// которое по-прежнему присылают старые клиенты.
const (
	fileField      = "file"
	fileFieldAlias = "videoFile"
)

// formPayload извлекает файл из разобранной multipart-формы.
// Отсутствие файла — не ошибка (payload == nil). Неизвестное файловое поле,
// несколько файлов или оба имени сразу — 400, недопустимый тип — 415.
// ok == false означает, что ответ с ошибкой уже записан.
func (h *VideosHandler) formPayload(w http.ResponseWriter, r *http.Request) (payload *model.Payload, closeFn func(), ok bool) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, true
	}

	var (
		header *multipart.FileHeader
		field  string
	)
	for name, headers := range r.MultipartForm.File {
		if name != fileField && name != fileFieldAlias {
			apierrors.ValidationError(w, "Неизвестное файловое поле "+name+
				": файл передаётся в поле "+fileField)
			return nil, noop, false
		}
		if header != nil || len(headers) != 1 {
			apierrors.ValidationError(w, "Допускается ровно один файл в поле "+fileField)
			return nil, noop, false
		}
		header, field = headers[0], name
	}
	if header == nil {
		return nil, noop, true
	}

	contentType := payloadContentType(header)
	if !model.IsAllowedContentType(contentType) {
		apierrors.UnsupportedMediaType(w, "Недопустимый тип файла: "+contentType+
			". Допускаются видео, PDF и изображения (JPEG, PNG, GIF, WebP)")
		return nil, noop, false
	}

	file, err := header.Open()
	if err != nil {
		apierrors.ValidationError(w, "Некорректное поле "+field+": "+err.Error())
		return nil, noop, false
	}

	return &model.Payload{
		FileName:    header.Filename,
		ContentType: contentType,
		Body:        file,
	}, closeFunc(file), true
}

func closeFunc(f multipart.File) func() {
	return func() { _ = f.Close() }
}
