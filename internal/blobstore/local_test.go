package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewLocalStore_CreatesDirectory проверяет создание директории хранения.
func TestNewLocalStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")

	store, err := NewLocalStore(dir, "http://localhost:8040/blobs/")
	if err != nil {
		t.Fatalf("ошибка создания LocalStore: %v", err)
	}
	if store.Dir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, store.Dir())
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestLocalStore_PutOpenDelete проверяет полный цикл объекта.
func TestLocalStore_PutOpenDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8040/blobs")
	if err != nil {
		t.Fatalf("ошибка создания LocalStore: %v", err)
	}

	content := []byte("официальное обращение, полная версия")
	obj, err := store.Put(context.Background(), bytes.NewReader(content), "Press Briefing.MP4", "video/mp4")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if obj.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), obj.Size)
	}
	if !strings.HasPrefix(obj.Ref, "PressBriefing_") {
		t.Errorf("ключ должен содержать очищенное имя файла: %s", obj.Ref)
	}
	if !strings.HasSuffix(obj.Ref, ".mp4") {
		t.Errorf("ключ должен сохранять расширение: %s", obj.Ref)
	}
	if obj.URL != "http://localhost:8040/blobs/"+obj.Ref {
		t.Errorf("URL = %s", obj.URL)
	}
	if store.Backend() != "local" {
		t.Errorf("Backend() = %s, ожидается local", store.Backend())
	}

	f, err := store.Open(obj.Ref)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}

	// Временный файл после rename не остаётся
	if _, err := os.Stat(filepath.Join(store.Dir(), obj.Ref+".tmp")); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}

	if err := store.Delete(context.Background(), obj.Ref); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := store.Open(obj.Ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("после удаления ожидалась ErrNotFound, получено %v", err)
	}
	// Повторное удаление — не ошибка
	if err := store.Delete(context.Background(), obj.Ref); err != nil {
		t.Errorf("повторное удаление вернуло ошибку: %v", err)
	}
}

// TestLocalStore_PutCanceled проверяет откат записи при отмене контекста.
func TestLocalStore_PutCanceled(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost/blobs")
	if err != nil {
		t.Fatalf("ошибка создания LocalStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, bytes.NewReader([]byte("data")), "clip.mp4", "video/mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась context.Canceled, получено %v", err)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("после отмены в хранилище остались файлы: %d", len(entries))
	}
}

// TestLocalStore_OpenRejectsTraversal — ключи с путями не открываются.
func TestLocalStore_OpenRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "blobs"), "http://localhost/blobs")
	if err != nil {
		t.Fatalf("ошибка создания LocalStore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{"../secret.txt", "..", "", "a/b", `..\secret.txt`, "clip.mp4.tmp"} {
		if _, err := store.Open(ref); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q): ожидалась ErrNotFound, получено %v", ref, err)
		}
	}
}

func TestGenerateObjectName(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantPrefix string
		wantExt    string
	}{
		{"обычное имя", "briefing.mp4", "briefing_", ".mp4"},
		{"кириллица", "обращение.pdf", "file_", ".pdf"},
		{"путь в имени", "../../etc/passwd", "passwd_", ""},
		{"без расширения", "clip", "clip_", ""},
		{"странное расширение", "clip.m$4", "clip_", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generateObjectName(tt.filename)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("generateObjectName(%q) = %q, ожидается префикс %q", tt.filename, got, tt.wantPrefix)
			}
			if filepath.Ext(got) != tt.wantExt {
				t.Errorf("generateObjectName(%q) = %q, ожидается расширение %q", tt.filename, got, tt.wantExt)
			}
			if strings.ContainsAny(got, `/\`) {
				t.Errorf("ключ содержит разделитель пути: %q", got)
			}
		})
	}
}
