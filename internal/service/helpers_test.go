package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/verify-module/internal/blobstore"
	"github.com/bigkaa/goartstore/verify-module/internal/database"
	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
	"github.com/bigkaa/goartstore/verify-module/internal/hashing"
	"github.com/bigkaa/goartstore/verify-module/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv — сервисы поверх SQLite и локального хранилища во временной директории.
type testEnv struct {
	db       *sql.DB
	videos   repository.VideoRepository
	audits   repository.AuditRepository
	blobs    *blobstore.LocalStore
	audit    *AuditService
	registry *RegistryService
	verifier *VerificationService
	fetcher  *fakeFetcher
}

func newTestEnv(t *testing.T) *testEnv {
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

	env := &testEnv{
		db:      db,
		videos:  repository.NewSQLiteVideoRepository(db),
		audits:  repository.NewSQLiteAuditRepository(db),
		blobs:   blobs,
		fetcher: &fakeFetcher{pages: map[string][]byte{}},
	}
	env.audit = NewAuditService(env.audits, logger)
	env.registry = NewRegistryService(env.videos, blobs, stager, NewCacheService(100, time.Minute), env.audit, logger)
	env.verifier = NewVerificationService(env.registry, env.fetcher, env.audit, true, logger)
	return env
}

func (e *testEnv) auditEntries(t *testing.T) []*model.AuditEntry {
	t.Helper()
	entries, err := e.audits.List(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func payload(name string, data []byte) *model.Payload {
	return &model.Payload{FileName: name, ContentType: "video/mp4", Body: bytes.NewReader(data)}
}

// fakeFetcher отдаёт заранее заданное содержимое по ссылке.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := f.pages[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return data, nil
}

// fakeBlobStore — хранилище с управляемыми ошибками и учётом удалений.
type fakeBlobStore struct {
	mu      sync.Mutex
	putErr  error
	puts    int
	deleted []string
}

func (s *fakeBlobStore) Put(_ context.Context, reader io.Reader, name, _ string) (*blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return nil, s.putErr
	}
	n, err := io.Copy(io.Discard, reader)
	if err != nil {
		return nil, err
	}
	s.puts++
	ref := name + "-obj"
	return &blobstore.Object{Ref: ref, URL: "https://cdn.example.org/" + ref, Size: n}, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ref)
	return nil
}

func (s *fakeBlobStore) Backend() string { return "fake" }

func (s *fakeBlobStore) Close() error { return nil }

// fakeVideoRepo — репозиторий с подменяемым поведением.
type fakeVideoRepo struct {
	createFn    func(ctx context.Context, rec *model.VideoRecord) error
	getByIDFn   func(ctx context.Context, id string) (*model.VideoRecord, error)
	getByHashFn func(ctx context.Context, hash string) (*model.VideoRecord, error)
	getByURLFn  func(ctx context.Context, url string) (*model.VideoRecord, error)
}

func (r *fakeVideoRepo) Create(ctx context.Context, rec *model.VideoRecord) error {
	if r.createFn != nil {
		return r.createFn(ctx, rec)
	}
	return nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, id string) (*model.VideoRecord, error) {
	if r.getByIDFn != nil {
		return r.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVideoRepo) GetByHash(ctx context.Context, hash string) (*model.VideoRecord, error) {
	if r.getByHashFn != nil {
		return r.getByHashFn(ctx, hash)
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVideoRepo) GetByStorageURL(ctx context.Context, url string) (*model.VideoRecord, error) {
	if r.getByURLFn != nil {
		return r.getByURLFn(ctx, url)
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVideoRepo) Count(context.Context) (int64, error) { return 0, nil }

// memAuditRepo — журнал аудита в памяти.
type memAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (r *memAuditRepo) Append(_ context.Context, e *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _ int) ([]*model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AuditEntry, len(r.entries))
	for i, e := range r.entries {
		out[len(r.entries)-1-i] = e
	}
	return out, nil
}

// newFakeRegistry собирает реестр поверх подменяемых зависимостей.
func newFakeRegistry(t *testing.T, videos repository.VideoRepository, blobs blobstore.Store) (*RegistryService, *memAuditRepo) {
	t.Helper()
	stager, err := hashing.NewStager(t.TempDir())
	require.NoError(t, err)
	audits := &memAuditRepo{}
	audit := NewAuditService(audits, discardLogger())
	return NewRegistryService(videos, blobs, stager, NewCacheService(100, time.Minute), audit, discardLogger()), audits
}
