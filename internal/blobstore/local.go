package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore — хранилище содержимого в локальной директории.
// Объекты отдаются HTTP-обработчиком по адресу {publicURL}/{ref}.
type LocalStore struct {
	// dir — корневая директория хранения
	dir string
	// publicURL — базовый URL раздачи объектов
	publicURL string
}

// NewLocalStore создаёт LocalStore. Директория создаётся, если её нет.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put записывает содержимое на диск.
// Паттерн: temp файл → запись → fsync → atomic rename. При ошибке temp файл удаляется.
func (s *LocalStore) Put(ctx context.Context, reader io.Reader, name, _ string) (*Object, error) {
	ref := generateObjectName(name)
	fullPath := filepath.Join(s.dir, ref)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, &ctxReader{ctx: ctx, r: reader})
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &Object{
		Ref:  ref,
		URL:  s.publicURL + "/" + url.PathEscape(ref),
		Size: size,
	}, nil
}

// Open открывает объект для чтения. Вызывающий код обязан закрыть файл.
func (s *LocalStore) Open(ref string) (*os.File, error) {
	if !validRef(ref) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", ref, err)
	}
	return f, nil
}

// Delete удаляет объект с диска. Возвращает nil, если файл уже не существует.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", ref, err)
	}
	return nil
}

// Backend возвращает имя реализации.
func (s *LocalStore) Backend() string { return "local" }

// Close — у локального хранилища нет внешних ресурсов.
func (s *LocalStore) Close() error { return nil }

// Dir возвращает корневую директорию хранения.
func (s *LocalStore) Dir() string { return s.dir }

// validRef отсекает ключи с разделителями путей и незавершённые записи.
func validRef(ref string) bool {
	return ref != "" &&
		ref != "." && ref != ".." &&
		!strings.ContainsAny(ref, `/\`) &&
		!strings.HasSuffix(ref, ".tmp")
}

// ctxReader прерывает копирование при отмене контекста.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
