// Пакет hashing — вычисление SHA-256 отпечатков содержимого.
// Отпечаток одинаков для одних и тех же байтов независимо от источника:
// буфер в памяти, поток или локальный файл.
package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// DigestLen — длина отпечатка в hex-символах.
const DigestLen = sha256.Size * 2

// ErrRead — источник данных не удалось прочитать.
var ErrRead = errors.New("ошибка чтения источника данных")

type sourceKind int

const (
	sourceBytes sourceKind = iota
	sourceReader
	sourceFile
)

// Source — источник содержимого для вычисления отпечатка.
type Source struct {
	kind   sourceKind
	data   []byte
	reader io.Reader
	path   string
}

// FromBytes — буфер в памяти (например, загруженный по ссылке).
func FromBytes(b []byte) Source {
	return Source{kind: sourceBytes, data: b}
}

// FromReader — поток; читается до конца.
func FromReader(r io.Reader) Source {
	return Source{kind: sourceReader, reader: r}
}

// FromFile — локальный файл.
func FromFile(path string) Source {
	return Source{kind: sourceFile, path: path}
}

// ComputeDigest вычисляет SHA-256 источника и возвращает 64 hex-символа
// нижнего регистра. Ошибки чтения оборачиваются в ErrRead.
func ComputeDigest(src Source) (string, error) {
	switch src.kind {
	case sourceBytes:
		sum := sha256.Sum256(src.data)
		return hex.EncodeToString(sum[:]), nil
	case sourceReader:
		digest, _, err := digestReader(src.reader)
		return digest, err
	case sourceFile:
		f, err := os.Open(src.path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrRead, src.path, err)
		}
		defer f.Close()
		digest, _, err := digestReader(f)
		return digest, err
	default:
		return "", fmt.Errorf("%w: неизвестный тип источника", ErrRead)
	}
}

// PlaceholderDigest возвращает случайное значение в формате отпечатка
// (32 случайных байта в hex) для записей без содержимого.
// Заглушка не совпадёт с отпечатком реального содержимого.
func PlaceholderDigest() (string, error) {
	buf := make([]byte, sha256.Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации случайного значения: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsDigest проверяет формат отпечатка: 64 hex-символа нижнего регистра.
func IsDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func digestReader(r io.Reader) (string, int64, error) {
	if r == nil {
		return "", 0, fmt.Errorf("%w: пустой поток", ErrRead)
	}
	hasher := sha256.New()
	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", n, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
