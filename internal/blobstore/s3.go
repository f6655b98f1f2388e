package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config — параметры S3-совместимого хранилища.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint — собственный endpoint (MinIO, LocalStack); включает path-style адресацию
	Endpoint string
	// Prefix — необязательный префикс ключей
	Prefix string
	// PublicURL — базовый URL раздачи объектов (CDN или публичный bucket)
	PublicURL string
	// AccessKeyID/SecretAccessKey — статические ключи; пусто — стандартная цепочка AWS
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store — хранилище содержимого в S3.
type S3Store struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewS3Store создаёт S3Store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Для MinIO/LocalStack
		}
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = defaultS3PublicURL(cfg)
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: publicURL,
	}, nil
}

// Put загружает объект в S3.
// reader должен поддерживать io.Seeker (например, *os.File) для подписи запроса.
func (s *S3Store) Put(ctx context.Context, reader io.Reader, name, contentType string) (*Object, error) {
	key := joinKey(s.prefix, generateObjectName(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	// Seekable тело передаём как есть: SDK сам подпишет запрос и посчитает checksum
	counter := &countingReader{r: reader}
	size := int64(-1)
	if rs, ok := reader.(io.ReadSeeker); ok {
		n, err := remaining(rs)
		if err != nil {
			return nil, fmt.Errorf("ошибка определения размера объекта: %w", err)
		}
		size = n
		input.Body = rs
		input.ContentLength = aws.Int64(n)
	} else {
		input.Body = counter
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("ошибка загрузки объекта %s в S3: %w", key, err)
	}
	if size < 0 {
		size = counter.n
	}

	return &Object{
		Ref:  key,
		URL:  s.publicURL + "/" + escapeKey(key),
		Size: size,
	}, nil
}

// Delete удаляет объект из S3.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s из S3: %w", ref, err)
	}
	return nil
}

// Backend возвращает имя реализации.
func (s *S3Store) Backend() string { return "s3" }

// Close — у клиента S3 нет ресурсов, требующих закрытия.
func (s *S3Store) Close() error { return nil }

// defaultS3PublicURL строит базовый URL объектов bucket-а.
func defaultS3PublicURL(cfg S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// escapeKey экранирует сегменты ключа, сохраняя разделители.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// remaining возвращает число байт от текущей позиции до конца потока.
func remaining(rs io.ReadSeeker) (int64, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}

// countingReader считает прочитанные байты для несикабельных потоков.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
