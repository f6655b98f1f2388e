// Пакет blobstore — долговременное хранилище загруженного содержимого.
// Реализации: локальная директория (local), S3-совместимое хранилище (s3),
// Google Cloud Storage (gcs). Put возвращает публичный URL и ключ объекта;
// ключ используется для удаления при откате регистрации.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound — объект не найден в хранилище.
var ErrNotFound = errors.New("объект не найден")

// Object — сохранённый объект.
type Object struct {
	// Ref — ключ объекта в хранилище
	Ref string
	// URL — долговременный URL содержимого
	URL string
	// Size — размер в байтах
	Size int64
}

// Store — контракт хранилища содержимого.
type Store interface {
	// Put сохраняет содержимое reader. name — исходное имя файла (для ключа и расширения).
	Put(ctx context.Context, reader io.Reader, name, contentType string) (*Object, error)
	// Delete удаляет объект по ключу. Отсутствие объекта не считается ошибкой.
	Delete(ctx context.Context, ref string) error
	// Backend возвращает имя реализации (local, s3, gcs).
	Backend() string
	// Close освобождает ресурсы клиента.
	Close() error
}

// generateObjectName генерирует ключ объекта.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: press-briefing_20260221150405_a1b2c3d4.mp4
func generateObjectName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if len(ext) > 10 || sanitize(strings.TrimPrefix(ext, ".")) != strings.TrimPrefix(ext, ".") {
		ext = ""
	}
	name := sanitize(strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename)))

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
}

// sanitize убирает небезопасные символы из строки для использования в ключе объекта.
// Оставляет только латинские буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// joinKey добавляет префикс к ключу объекта.
func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
