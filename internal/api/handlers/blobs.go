// blobs.go — отдача объектов локального хранилища: GET /blobs/{ref}.
// Делает storageUrl локальных записей рабочей ссылкой.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/verify-module/internal/api/errors"
	"github.com/bigkaa/goartstore/verify-module/internal/blobstore"
)

// BlobOpener открывает объект локального хранилища по ключу.
type BlobOpener interface {
	Open(ref string) (*os.File, error)
}

// BlobsHandler — обработчик скачивания объектов.
type BlobsHandler struct {
	store  BlobOpener
	logger *slog.Logger
}

// NewBlobsHandler создаёт обработчик скачивания объектов.
func NewBlobsHandler(store BlobOpener, logger *slog.Logger) *BlobsHandler {
	return &BlobsHandler{
		store:  store,
		logger: logger.With(slog.String("component", "blobs_handler")),
	}
}

// GetBlob обрабатывает GET /blobs/{ref}.
// http.ServeContent обрабатывает Range, If-Modified-Since и Content-Length.
func (h *BlobsHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	file, err := h.store.Open(ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			apierrors.NotFound(w, "Объект не найден")
			return
		}
		h.logger.Error("Ошибка открытия объекта",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения объекта")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		h.logger.Error("Ошибка получения stat объекта",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения объекта")
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, ref, stat.ModTime(), file)
}
