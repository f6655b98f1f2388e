// Пакет config — загрузка и валидация конфигурации Verify Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend-ы хранилища записей.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
)

// Допустимые backend-ы хранилища содержимого (blob).
const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"
	BlobBackendGCS   = "gcs"
)

// Config содержит все параметры конфигурации Verify Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Хранилище записей ---

	// Backend хранилища записей (postgres, sqlite)
	StoreBackend string
	DBHost       string
	DBPort       int
	DBName       string
	DBUser       string
	DBPassword   string
	DBSSLMode    string
	// Путь к файлу SQLite (lite-режим без PostgreSQL)
	SQLitePath string

	// --- Хранилище содержимого ---

	// Backend хранилища содержимого (local, s3, gcs)
	BlobBackend string
	// Директория локального хранилища
	BlobDir string
	// Базовый публичный URL, под которым отдаются локальные объекты
	BlobPublicURL string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3Prefix          string
	S3PublicURL       string
	S3AccessKeyID     string
	S3SecretAccessKey string

	GCSBucket    string
	GCSPrefix    string
	GCSEndpoint  string
	GCSPublicURL string

	// --- Загрузка файлов ---

	// Максимальный размер тела запроса с файлом (байт)
	MaxUploadSize int64
	// Объём multipart-формы, удерживаемый в памяти (остальное — во временных файлах)
	UploadMemory int64
	// Директория для временных файлов (пусто — системная)
	TempDir string

	// --- Загрузка по ссылке ---

	// Таймаут загрузки содержимого по ссылке
	FetchTimeout time.Duration
	// Максимальный размер содержимого, загружаемого по ссылке
	FetchMaxBytes int64
	// Ограничение частоты исходящих запросов (запросов/с, 0 — без ограничения)
	FetchRate  float64
	FetchBurst int
	// Разрешить загрузку с loopback, частных и link-local адресов
	FetchAllowPrivate bool
	// Предварительная проверка точного совпадения storageUrl перед загрузкой по ссылке
	VerifyURLPrecheck bool

	// --- Кэш записей ---

	CacheMaxSize int
	CacheTTL     time.Duration

	// --- JWT ---

	// URL JWKS endpoint (пусто — режим разработки без аутентификации)
	JWTJWKSURL          string
	JWTIssuer           string
	JWTLeeway           time.Duration
	JWKSClientTimeout   time.Duration
	JWKSRefreshInterval time.Duration
	CACertPath          string
	RoleOfficialGroups  []string
	RoleFactcheckGroups []string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// VM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("VM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("VM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("VM_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("VM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("VM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("VM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("VM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_READ_TIMEOUT: %w", err)
	}
	// Запись ответа на загрузку крупного файла может занимать заметное время
	cfg.HTTPWriteTimeout, err = getEnvDuration("VM_HTTP_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("VM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Хранилище записей ---

	if err := loadStore(cfg); err != nil {
		return nil, err
	}

	// --- Хранилище содержимого ---

	if err := loadBlob(cfg); err != nil {
		return nil, err
	}

	// --- Загрузка файлов ---

	cfg.MaxUploadSize, err = getEnvInt64("VM_MAX_UPLOAD_SIZE", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("VM_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("VM_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.UploadMemory, err = getEnvInt64("VM_UPLOAD_MEMORY", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("VM_UPLOAD_MEMORY: %w", err)
	}
	if cfg.UploadMemory <= 0 {
		return nil, fmt.Errorf("VM_UPLOAD_MEMORY: значение должно быть > 0")
	}
	cfg.TempDir = os.Getenv("VM_TEMP_DIR")

	// --- Загрузка по ссылке ---

	// VM_FETCH_TIMEOUT — обязательное ограничение времени загрузки по ссылке
	cfg.FetchTimeout, err = getEnvDurationFallback("VM_FETCH_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchMaxBytes, err = getEnvInt64("VM_FETCH_MAX_BYTES", 256<<20)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_MAX_BYTES: %w", err)
	}
	if cfg.FetchMaxBytes <= 0 {
		return nil, fmt.Errorf("VM_FETCH_MAX_BYTES: значение должно быть > 0")
	}
	cfg.FetchRate, err = getEnvFloat("VM_FETCH_RATE", 0)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_RATE: %w", err)
	}
	if cfg.FetchRate < 0 {
		return nil, fmt.Errorf("VM_FETCH_RATE: значение должно быть >= 0")
	}
	cfg.FetchBurst, err = getEnvInt("VM_FETCH_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_BURST: %w", err)
	}
	if cfg.FetchBurst < 1 {
		return nil, fmt.Errorf("VM_FETCH_BURST: значение должно быть >= 1")
	}
	cfg.FetchAllowPrivate, err = getEnvBool("VM_FETCH_ALLOW_PRIVATE", false)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_ALLOW_PRIVATE: %w", err)
	}
	cfg.VerifyURLPrecheck, err = getEnvBool("VM_VERIFY_URL_PRECHECK", true)
	if err != nil {
		return nil, fmt.Errorf("VM_VERIFY_URL_PRECHECK: %w", err)
	}

	// --- Кэш записей ---

	cfg.CacheMaxSize, err = getEnvInt("VM_CACHE_MAX_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize < 1 {
		return nil, fmt.Errorf("VM_CACHE_MAX_SIZE: значение должно быть >= 1")
	}
	cfg.CacheTTL, err = getEnvDurationFallback("VM_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	if err := loadAuth(cfg); err != nil {
		return nil, err
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("VM_DEPHEALTH_GROUP", "goartstore")
	cfg.DephealthCheckInterval, err = getEnvDurationFallback("VM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("VM_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadStore загружает параметры хранилища записей.
func loadStore(cfg *Config) error {
	var err error

	cfg.StoreBackend = strings.ToLower(getEnvDefault("VM_STORE_BACKEND", StoreBackendPostgres))
	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		cfg.DBHost, err = getEnvRequired("VM_DB_HOST")
		if err != nil {
			return err
		}
		cfg.DBPort, err = getEnvInt("VM_DB_PORT", 5432)
		if err != nil {
			return fmt.Errorf("VM_DB_PORT: %w", err)
		}
		cfg.DBName = getEnvDefault("VM_DB_NAME", "verify")
		cfg.DBUser = getEnvDefault("VM_DB_USER", "verify")
		cfg.DBPassword = os.Getenv("VM_DB_PASSWORD")
		cfg.DBSSLMode = getEnvDefault("VM_DB_SSL_MODE", "disable")
	case StoreBackendSQLite:
		cfg.SQLitePath = getEnvDefault("VM_SQLITE_PATH", "./data/verify.db")
	default:
		return fmt.Errorf("VM_STORE_BACKEND: недопустимое значение %q, допустимые: postgres, sqlite", cfg.StoreBackend)
	}
	return nil
}

// loadBlob загружает параметры хранилища содержимого.
func loadBlob(cfg *Config) error {
	var err error

	cfg.BlobBackend = strings.ToLower(getEnvDefault("VM_BLOB_BACKEND", BlobBackendLocal))
	switch cfg.BlobBackend {
	case BlobBackendLocal:
		cfg.BlobDir = getEnvDefault("VM_BLOB_DIR", "./data/blobs")
		cfg.BlobPublicURL = strings.TrimRight(
			getEnvDefault("VM_BLOB_PUBLIC_URL", fmt.Sprintf("http://localhost:%d/blobs", cfg.Port)), "/")
		if err := validateURL(cfg.BlobPublicURL); err != nil {
			return fmt.Errorf("VM_BLOB_PUBLIC_URL: %w", err)
		}
	case BlobBackendS3:
		cfg.S3Bucket, err = getEnvRequired("VM_S3_BUCKET")
		if err != nil {
			return err
		}
		cfg.S3Region = getEnvDefault("VM_S3_REGION", "us-east-1")
		cfg.S3Endpoint = os.Getenv("VM_S3_ENDPOINT")
		cfg.S3Prefix = strings.Trim(os.Getenv("VM_S3_PREFIX"), "/")
		cfg.S3PublicURL = strings.TrimRight(os.Getenv("VM_S3_PUBLIC_URL"), "/")
		// Без статических ключей используется стандартная цепочка AWS (env, IRSA, профиль)
		cfg.S3AccessKeyID = os.Getenv("VM_S3_ACCESS_KEY_ID")
		cfg.S3SecretAccessKey = os.Getenv("VM_S3_SECRET_ACCESS_KEY")
	case BlobBackendGCS:
		cfg.GCSBucket, err = getEnvRequired("VM_GCS_BUCKET")
		if err != nil {
			return err
		}
		cfg.GCSPrefix = strings.Trim(os.Getenv("VM_GCS_PREFIX"), "/")
		cfg.GCSEndpoint = os.Getenv("VM_GCS_ENDPOINT")
		cfg.GCSPublicURL = strings.TrimRight(os.Getenv("VM_GCS_PUBLIC_URL"), "/")
	default:
		return fmt.Errorf("VM_BLOB_BACKEND: недопустимое значение %q, допустимые: local, s3, gcs", cfg.BlobBackend)
	}
	return nil
}

// loadAuth загружает параметры JWT-аутентификации.
func loadAuth(cfg *Config) error {
	var err error

	// VM_JWKS_URL — без него сервис работает без аутентификации (для разработки)
	cfg.JWTJWKSURL = os.Getenv("VM_JWKS_URL")
	if cfg.JWTJWKSURL != "" {
		if err := validateURL(cfg.JWTJWKSURL); err != nil {
			return fmt.Errorf("VM_JWKS_URL: %w", err)
		}
	}
	cfg.JWTIssuer = os.Getenv("VM_JWT_ISSUER")
	cfg.JWTLeeway, err = getEnvDuration("VM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return fmt.Errorf("VM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDurationFallback("VM_JWKS_CLIENT_TIMEOUT", 5*time.Second)
	if err != nil {
		return fmt.Errorf("VM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationFallback("VM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return fmt.Errorf("VM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.CACertPath = os.Getenv("VM_CA_CERT_PATH")

	cfg.RoleOfficialGroups = parseCSV(getEnvDefault("VM_ROLE_OFFICIAL_GROUPS", "verify-officials"))
	cfg.RoleFactcheckGroups = parseCSV(getEnvDefault("VM_ROLE_FACTCHECK_GROUPS", "verify-factcheckers"))
	return nil
}

// DatabaseDSN возвращает DSN для подключения к PostgreSQL (формат pgx).
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// AuthEnabled возвращает true, если задан JWKS endpoint.
func (c *Config) AuthEnabled() bool {
	return c.JWTJWKSURL != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — то же, что getEnvInt, для размеров в байтах.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationFallback возвращает time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
// Если задана — парсится и валидируется (> 0).
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL должен использовать схему http или https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL не содержит хост: %q", raw)
	}
	return nil
}
