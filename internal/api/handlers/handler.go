// Пакет handlers — HTTP-обработчики Verify Module.
// Обработчики разбирают запрос, вызывают сервисный слой и переводят
// ошибки сервисов в стандартный формат ошибок API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	apierrors "github.com/bigkaa/goartstore/verify-module/internal/api/errors"
	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case errors.Is(err, context.Canceled):
		// Клиент отключился, ответ уже никто не прочитает.
		logger.Info("Запрос отменён клиентом")
	default:
		logger.Error("Ошибка обработки запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// writeBodyError переводит ошибку чтения тела запроса в HTTP-ответ:
// превышение лимита — 413, остальное — 400.
func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierrors.PayloadTooLarge(w, "Размер запроса превышает допустимый")
		return
	}
	apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
}

// payloadContentType возвращает MIME-тип загруженного файла.
// Если клиент не указал тип (или указал octet-stream), тип определяется по расширению.
func payloadContentType(header *multipart.FileHeader) string {
	ct := strings.TrimSpace(header.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
		return byExt
	}
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// isMultipart проверяет, что запрос — multipart/form-data.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// isJSON проверяет, что тело запроса — JSON.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
