// audit.go — лента журнала аудита: GET /api/v1/audit-logs.
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/bigkaa/goartstore/verify-module/internal/api/errors"
	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

// maxAuditLimit — верхняя граница параметра limit.
const maxAuditLimit = 1000

// AuditHandler — обработчик журнала аудита.
type AuditHandler struct {
	registry *service.RegistryService
	logger   *slog.Logger
}

// NewAuditHandler создаёт обработчик журнала аудита.
func NewAuditHandler(registry *service.RegistryService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		registry: registry,
		logger:   logger.With(slog.String("component", "audit_handler")),
	}
}

// auditEntryResponse — запись журнала в ответе API.
type auditEntryResponse struct {
	ID                 int64     `json:"id"`
	ActionType         string    `json:"actionType"`
	ActorRole          string    `json:"actorRole"`
	ReferenceID        string    `json:"referenceId,omitempty"`
	Result             string    `json:"result,omitempty"`
	VerificationSource string    `json:"verificationSource,omitempty"`
	Details            string    `json:"details,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// ListAuditLogs обрабатывает GET /api/v1/audit-logs.
// Возвращает массив записей, новые первыми. Параметр limit (1..1000) необязателен.
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			apierrors.ValidationError(w, "Параметр limit должен быть от 1 до 1000")
			return
		}
		limit = n
	}

	entries, err := h.registry.ListAuditEntries(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, auditEntryResponse{
			ID:                 e.ID,
			ActionType:         string(e.ActionType),
			ActorRole:          e.ActorRole,
			ReferenceID:        e.ReferenceID,
			Result:             string(e.Result),
			VerificationSource: string(e.Source),
			Details:            e.Details,
			Timestamp:          e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
