package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig — параметры Google Cloud Storage.
type GCSConfig struct {
	Bucket string
	Prefix string
	// Endpoint — собственный endpoint (эмулятор); отключает аутентификацию
	Endpoint string
	// PublicURL — базовый URL раздачи объектов
	PublicURL string
}

// GCSStore — хранилище содержимого в Google Cloud Storage.
type GCSStore struct {
	client    *storage.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewGCSStore создаёт GCSStore. Без Endpoint используется ADC.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента GCS: %w", err)
	}

	return &GCSStore{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: gcsPublicURL(cfg),
	}, nil
}

// Put загружает объект в GCS.
func (s *GCSStore) Put(ctx context.Context, reader io.Reader, name, contentType string) (*Object, error) {
	key := joinKey(s.prefix, generateObjectName(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	size, err := io.Copy(w, reader)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("ошибка записи объекта %s в GCS: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ошибка завершения записи объекта %s в GCS: %w", key, err)
	}

	return &Object{
		Ref:  key,
		URL:  s.publicURL + "/" + escapeKey(key),
		Size: size,
	}, nil
}

// Delete удаляет объект из GCS.
func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	err := s.client.Bucket(s.bucket).Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("ошибка удаления объекта %s из GCS: %w", ref, err)
	}
	return nil
}

// Backend возвращает имя реализации.
func (s *GCSStore) Backend() string { return "gcs" }

// Close закрывает клиент GCS.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// gcsPublicURL строит базовый URL объектов bucket-а.
func gcsPublicURL(cfg GCSConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	return "https://storage.googleapis.com/" + cfg.Bucket
}
