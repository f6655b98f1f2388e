// records.go — публичная карточка записи: GET /api/v1/records/{verification_id}.
// Чтение карточки не является проверкой и в журнал аудита не попадает.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

// RecordsHandler — обработчик публичных карточек записей.
type RecordsHandler struct {
	registry *service.RegistryService
	logger   *slog.Logger
}

// NewRecordsHandler создаёт обработчик карточек записей.
func NewRecordsHandler(registry *service.RegistryService, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		registry: registry,
		logger:   logger.With(slog.String("component", "records_handler")),
	}
}

// recordResponse — публичные поля записи.
type recordResponse struct {
	VerificationID string    `json:"verificationId"`
	Title          string    `json:"title"`
	Authority      string    `json:"authority"`
	Hash           string    `json:"hash"`
	URL            string    `json:"url,omitempty"`
	FileName       string    `json:"fileName"`
	Timestamp      time.Time `json:"timestamp"`
}

// GetRecord обрабатывает GET /api/v1/records/{verification_id}.
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "verification_id")

	rec, err := h.registry.FindByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, recordResponse{
		VerificationID: rec.VerificationID,
		Title:          rec.Title,
		Authority:      rec.Authority,
		Hash:           rec.ContentHash,
		URL:            rec.StorageURL,
		FileName:       rec.OriginalFileName,
		Timestamp:      rec.RegisteredAt,
	})
}
