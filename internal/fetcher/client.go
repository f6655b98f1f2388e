// Пакет fetcher — HTTP-клиент для загрузки содержимого по ссылке,
// переданной вызывающей стороной. Загрузка ограничена по времени,
// по размеру и (опционально) по частоте исходящих запросов.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Ошибки загрузки по ссылке.
var (
	// ErrInvalidURL — ссылка не является абсолютным http(s) URL
	ErrInvalidURL = errors.New("некорректная ссылка")
	// ErrFetch — содержимое не удалось получить (сеть, таймаут, статус ответа)
	ErrFetch = errors.New("ошибка загрузки по ссылке")
	// ErrTooLarge — содержимое превышает допустимый размер
	ErrTooLarge = errors.New("содержимое по ссылке превышает допустимый размер")
)

// Prometheus-метрики загрузки по ссылке.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_link_fetch_total",
		Help: "Количество загрузок содержимого по ссылке по результату",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vm_link_fetch_duration_seconds",
		Help:    "Длительность загрузки содержимого по ссылке",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

// Options — параметры клиента.
type Options struct {
	// Timeout — общий таймаут одной загрузки (обязателен, > 0)
	Timeout time.Duration
	// MaxBytes — максимальный размер содержимого
	MaxBytes int64
	// Rate — ограничение запросов в секунду (0 — без ограничения)
	Rate float64
	// Burst — допустимый всплеск запросов
	Burst int
	// CACertPath — дополнительный CA для TLS (пусто — системный пул)
	CACertPath string
	// AllowPrivate — разрешить loopback, частные и link-local адреса
	AllowPrivate bool
}

// Client — загрузчик содержимого по ссылке.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New создаёт клиент загрузки по ссылке.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("таймаут загрузки по ссылке должен быть > 0")
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("максимальный размер загрузки должен быть > 0")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	if !opts.AllowPrivate {
		// Адрес проверяется при каждом соединении; через прокси
		// проверялся бы адрес прокси, а не ссылки.
		transport.Proxy = nil
		transport.DialContext = guardedDialer().DialContext
	}

	if opts.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", opts.CACertPath),
		)
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		limiter:  limiter,
		logger:   logger.With(slog.String("component", "link_fetcher")),
	}, nil
}

// Fetch загружает содержимое по ссылке целиком.
// Любая неудача (сеть, таймаут, статус не 2xx, внутренний адрес,
// превышение размера) возвращается как ошибка, оборачивающая ErrFetch,
// ErrTooLarge или ErrInvalidURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	data, err := c.fetch(ctx, rawURL)
	fetchDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	switch {
	case errors.Is(err, ErrTooLarge):
		result = "too_large"
	case errors.Is(err, ErrInvalidURL):
		result = "invalid_url"
	case errors.Is(err, ErrBlockedAddress):
		result = "blocked"
	case err != nil:
		result = "error"
	}
	fetchTotal.WithLabelValues(result).Inc()

	if err != nil {
		c.logger.Debug("Загрузка по ссылке не удалась",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("Содержимое загружено по ссылке",
		slog.String("url", rawURL),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)
	return data, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: ожидание лимита запросов: %v", ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: создание запроса: %v", ErrFetch, err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL проверен выше, адрес назначения — в dialer
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: неожиданный статус %d", ErrFetch, resp.StatusCode)
	}

	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %d байт (лимит %d)", ErrTooLarge, resp.ContentLength, c.maxBytes)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	// Читаем на один байт больше лимита, чтобы отличить превышение от ровного размера
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: чтение ответа: %v", ErrFetch, err)
	}
	if n > c.maxBytes {
		return nil, fmt.Errorf("%w: лимит %d байт", ErrTooLarge, c.maxBytes)
	}

	return buf.Bytes(), nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат не содержит PEM-блоков: %s", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
