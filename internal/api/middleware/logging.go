// logging.go — журнал доступа: одна запись slog на каждый HTTP-запрос
// с идентификатором запроса, шаблоном маршрута, статусом и размером ответа.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// HeaderRequestID — заголовок идентификатора запроса (входящий и исходящий).
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLen — входящий идентификатор длиннее этого заменяется своим.
const maxRequestIDLen = 128

// AccessLog возвращает middleware журнала доступа.
//
// Идентификатор запроса берётся из X-Request-Id или генерируется и
// возвращается клиенту в том же заголовке. Уровень записи зависит от
// статуса; успешные обращения к health и metrics пишутся на DEBUG,
// чтобы пробы Kubernetes не забивали журнал.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := requestID(r)
			w.Header().Set(HeaderRequestID, reqID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			level := levelForStatus(status)
			if level == slog.LevelInfo && isProbePath(r.URL.Path) {
				level = slog.LevelDebug
			}
			if !logger.Enabled(r.Context(), level) {
				return
			}

			logger.LogAttrs(r.Context(), level, "HTTP запрос",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// levelForStatus: 5xx — ERROR, 4xx — WARN, остальное — INFO.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
	if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
		return uuid.NewString()
	}
	return id
}

// routePattern — шаблон маршрута chi ("/api/v1/records/{verification_id}");
// для несовпавших маршрутов — пустая строка.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func isProbePath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health/")
}
