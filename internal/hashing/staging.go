package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Stager — промежуточная запись загружаемого содержимого во временный файл
// с подсчётом SHA-256 на лету (один проход по потоку).
type Stager struct {
	// tempDir — директория временных файлов (пусто — системная)
	tempDir string
}

// Staged — содержимое, сохранённое во временный файл.
type Staged struct {
	// Path — путь временного файла
	Path string
	// Digest — SHA-256 содержимого
	Digest string
	// Size — размер в байтах
	Size int64
}

// NewStager создаёт Stager. Директория создаётся, если её нет.
func NewStager(tempDir string) (*Stager, error) {
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию временных файлов %s: %w", tempDir, err)
		}
	}
	return &Stager{tempDir: tempDir}, nil
}

// Stage записывает reader во временный файл и считает отпечаток.
// При ошибке временный файл удаляется. Ошибка источника оборачивается в ErrRead,
// ошибка записи на диск (ENOSPC, EIO) возвращается без ErrRead.
func (s *Stager) Stage(reader io.Reader) (*Staged, error) {
	f, err := os.CreateTemp(s.tempDir, "verify-*.part")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	size, err := copyAndHash(f, reader, hasher)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}

	return &Staged{
		Path:   tmpPath,
		Digest: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}, nil
}

// Open открывает временный файл для повторного чтения.
func (st *Staged) Open() (*os.File, error) {
	return os.Open(st.Path)
}

// Remove удаляет временный файл. Повторный вызов безопасен.
func (st *Staged) Remove() error {
	err := os.Remove(st.Path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", st.Path, err)
	}
	return nil
}

// copyAndHash копирует src в dst, обновляя hasher.
// Ошибки чтения src помечаются ErrRead, ошибки записи в dst — нет.
func copyAndHash(dst io.Writer, src io.Reader, hasher hash.Hash) (int64, error) {
	sr := &errTrackingReader{r: src}
	n, err := io.Copy(dst, io.TeeReader(sr, hasher))
	if err != nil {
		if sr.err != nil {
			return n, fmt.Errorf("%w: %v", ErrRead, sr.err)
		}
		return n, fmt.Errorf("ошибка записи временного файла: %w", err)
	}
	return n, nil
}

// errTrackingReader запоминает ошибку чтения источника (кроме io.EOF).
type errTrackingReader struct {
	r   io.Reader
	err error
}

func (s *errTrackingReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}
