package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/verify-module/internal/blobstore"
	"github.com/bigkaa/goartstore/verify-module/internal/database"
	"github.com/bigkaa/goartstore/verify-module/internal/hashing"
	"github.com/bigkaa/goartstore/verify-module/internal/repository"
	"github.com/bigkaa/goartstore/verify-module/internal/service"
)

const testMaxUpload = 1 << 20

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFetcher — загрузка по ссылке без сети.
type stubFetcher struct {
	pages map[string][]byte
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f.pages[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return data, nil
}

// testAPI — обработчики поверх SQLite и локального хранилища.
type testAPI struct {
	router   http.Handler
	registry *service.RegistryService
	blobs    *blobstore.LocalStore
	fetcher  *stubFetcher
}

func newTestAPI(t *testing.T, maxUpload int64) *testAPI {
	t.Helper()
	dir := t.TempDir()
	logger := discardLogger()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(dir, "verify.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := blobstore.NewLocalStore(filepath.Join(dir, "blobs"), "http://localhost:8040/blobs")
	require.NoError(t, err)
	stager, err := hashing.NewStager(filepath.Join(dir, "tmp"))
	require.NoError(t, err)

	audit := service.NewAuditService(repository.NewSQLiteAuditRepository(db), logger)
	registry := service.NewRegistryService(
		repository.NewSQLiteVideoRepository(db), blobs, stager,
		service.NewCacheService(100, time.Minute), audit, logger,
	)
	fetcher := &stubFetcher{pages: map[string][]byte{}}
	verifier := service.NewVerificationService(registry, fetcher, audit, true, logger)

	videos := NewVideosHandler(registry, verifier, maxUpload, 1<<16, logger)
	records := NewRecordsHandler(registry, logger)
	audits := NewAuditHandler(registry, logger)
	blobsHandler := NewBlobsHandler(blobs, logger)

	r := chi.NewRouter()
	r.Post("/api/v1/videos/upload", videos.Upload)
	r.Post("/api/v1/videos/verify", videos.Verify)
	r.Get("/api/v1/records/{verification_id}", records.GetRecord)
	r.Get("/api/v1/audit-logs", audits.ListAuditLogs)
	r.Get("/blobs/{ref}", blobsHandler.GetBlob)

	return &testAPI{router: r, registry: registry, blobs: blobs, fetcher: fetcher}
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// formFile — файл multipart-формы. Пустое field — поле "file".
type formFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

// multipartRequest строит multipart/form-data запрос с полями и файлами (nil пропускается).
func multipartRequest(t *testing.T, path string, fields map[string]string, files ...*formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, file := range files {
		if file == nil {
			continue
		}
		field := file.field
		if field == "" {
			field = "file"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+file.name+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// errorCode извлекает машиночитаемый код из стандартного тела ошибки.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, rec)
	return body.Error.Code
}

// upload регистрирует файл и возвращает ответ.
func (a *testAPI) upload(t *testing.T, name string, data []byte) registerResponse {
	t.Helper()
	rec := a.do(multipartRequest(t, "/api/v1/videos/upload", map[string]string{
		"title":     "Обращение министра",
		"authority": "Министерство информации",
	}, &formFile{name: name, contentType: "video/mp4", data: data}))
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, rec.Code, rec.Body.String())
	return decode[registerResponse](t, rec)
}
