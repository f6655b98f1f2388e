package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

// TestComputeDigest_SameBytesSameDigest — один и тот же отпечаток для всех типов источников.
func TestComputeDigest_SameBytesSameDigest(t *testing.T) {
	content := []byte("официальное видео: пресс-конференция 2024")
	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("ошибка записи файла: %v", err)
	}

	sources := map[string]Source{
		"bytes":  FromBytes(content),
		"reader": FromReader(bytes.NewReader(content)),
		"slow":   FromReader(iotest.OneByteReader(bytes.NewReader(content))),
		"file":   FromFile(path),
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			got, err := ComputeDigest(src)
			if err != nil {
				t.Fatalf("ComputeDigest() ошибка: %v", err)
			}
			if got != want {
				t.Errorf("ComputeDigest() = %s, ожидается %s", got, want)
			}
			if !IsDigest(got) {
				t.Errorf("отпечаток %q не в формате 64 hex", got)
			}
		})
	}
}

func TestComputeDigest_Empty(t *testing.T) {
	got, err := ComputeDigest(FromBytes(nil))
	if err != nil {
		t.Fatalf("ComputeDigest() ошибка: %v", err)
	}
	// SHA-256 пустой строки
	if got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("ComputeDigest(empty) = %s", got)
	}
}

func TestComputeDigest_ReadErrors(t *testing.T) {
	t.Run("поток с ошибкой", func(t *testing.T) {
		_, err := ComputeDigest(FromReader(iotest.ErrReader(errors.New("обрыв соединения"))))
		if !errors.Is(err, ErrRead) {
			t.Errorf("ожидалась ErrRead, получено %v", err)
		}
	})

	t.Run("файл не существует", func(t *testing.T) {
		_, err := ComputeDigest(FromFile(filepath.Join(t.TempDir(), "missing.mp4")))
		if !errors.Is(err, ErrRead) {
			t.Errorf("ожидалась ErrRead, получено %v", err)
		}
	})

	t.Run("nil поток", func(t *testing.T) {
		_, err := ComputeDigest(FromReader(nil))
		if !errors.Is(err, ErrRead) {
			t.Errorf("ожидалась ErrRead, получено %v", err)
		}
	})
}

func TestPlaceholderDigest(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		d, err := PlaceholderDigest()
		if err != nil {
			t.Fatalf("PlaceholderDigest() ошибка: %v", err)
		}
		if !IsDigest(d) {
			t.Fatalf("заглушка %q не в формате отпечатка", d)
		}
		if seen[d] {
			t.Fatalf("повтор заглушки: %s", d)
		}
		seen[d] = true
	}
}

func TestIsDigest(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	tests := []struct {
		in   string
		want bool
	}{
		{valid, true},
		{strings.ToUpper(valid), false},
		{valid[:63], false},
		{valid + "0", false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsDigest(tt.in); got != tt.want {
			t.Errorf("IsDigest(%q) = %v, ожидается %v", tt.in, got, tt.want)
		}
	}
}
