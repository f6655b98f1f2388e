package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"VM_DB_HOST": "localhost",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.StoreBackend != StoreBackendPostgres {
		t.Errorf("StoreBackend = %q, ожидается postgres", cfg.StoreBackend)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBName != "verify" {
		t.Errorf("DBName = %q, ожидается verify", cfg.DBName)
	}
	if cfg.BlobBackend != BlobBackendLocal {
		t.Errorf("BlobBackend = %q, ожидается local", cfg.BlobBackend)
	}
	if cfg.BlobPublicURL != "http://localhost:8040/blobs" {
		t.Errorf("BlobPublicURL = %q, ожидается http://localhost:8040/blobs", cfg.BlobPublicURL)
	}
	if cfg.FetchTimeout != 8*time.Second {
		t.Errorf("FetchTimeout = %v, ожидается 8s", cfg.FetchTimeout)
	}
	if cfg.FetchMaxBytes != 256<<20 {
		t.Errorf("FetchMaxBytes = %d, ожидается 256 MiB", cfg.FetchMaxBytes)
	}
	if !cfg.VerifyURLPrecheck {
		t.Error("VerifyURLPrecheck = false, ожидается true")
	}
	if cfg.FetchAllowPrivate {
		t.Error("FetchAllowPrivate = true, ожидается false")
	}
	if cfg.CacheMaxSize != 10000 {
		t.Errorf("CacheMaxSize = %d, ожидается 10000", cfg.CacheMaxSize)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true без VM_JWKS_URL")
	}
	if len(cfg.RoleOfficialGroups) != 1 || cfg.RoleOfficialGroups[0] != "verify-officials" {
		t.Errorf("RoleOfficialGroups = %v, ожидается [verify-officials]", cfg.RoleOfficialGroups)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_SQLiteDoesNotRequireDBHost(t *testing.T) {
	setEnvs(t, map[string]string{
		"VM_STORE_BACKEND": "sqlite",
		"VM_SQLITE_PATH":   "/tmp/verify-test.db",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.StoreBackend != StoreBackendSQLite {
		t.Errorf("StoreBackend = %q, ожидается sqlite", cfg.StoreBackend)
	}
	if cfg.SQLitePath != "/tmp/verify-test.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
}

func TestLoad_S3Backend(t *testing.T) {
	envs := minimalEnvs()
	envs["VM_BLOB_BACKEND"] = "s3"
	envs["VM_S3_BUCKET"] = "official-videos"
	envs["VM_S3_ENDPOINT"] = "http://minio:9000"
	envs["VM_S3_PREFIX"] = "/registry/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.S3Bucket != "official-videos" {
		t.Errorf("S3Bucket = %q", cfg.S3Bucket)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, ожидается us-east-1", cfg.S3Region)
	}
	if cfg.S3Prefix != "registry" {
		t.Errorf("S3Prefix = %q, ожидается registry", cfg.S3Prefix)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{
			name:    "нет VM_DB_HOST для postgres",
			envs:    map[string]string{},
			wantErr: "VM_DB_HOST",
		},
		{
			name:    "неизвестный store backend",
			envs:    map[string]string{"VM_STORE_BACKEND": "mongo"},
			wantErr: "VM_STORE_BACKEND",
		},
		{
			name:    "неизвестный blob backend",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_BLOB_BACKEND": "ftp"},
			wantErr: "VM_BLOB_BACKEND",
		},
		{
			name:    "s3 без bucket",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_BLOB_BACKEND": "s3"},
			wantErr: "VM_S3_BUCKET",
		},
		{
			name:    "нулевой таймаут загрузки по ссылке",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_FETCH_TIMEOUT": "0s"},
			wantErr: "VM_FETCH_TIMEOUT",
		},
		{
			name:    "некорректный уровень логирования",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_LOG_LEVEL": "trace"},
			wantErr: "VM_LOG_LEVEL",
		},
		{
			name:    "порт вне диапазона",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_PORT": "70000"},
			wantErr: "VM_PORT",
		},
		{
			name:    "JWKS URL без схемы",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_JWKS_URL": "keycloak/certs"},
			wantErr: "VM_JWKS_URL",
		},
		{
			name:    "отрицательный rate",
			envs:    map[string]string{"VM_DB_HOST": "db", "VM_FETCH_RATE": "-1"},
			wantErr: "VM_FETCH_RATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)
			_, err := Load()
			if err == nil {
				t.Fatal("Load() должен вернуть ошибку")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ошибка %q не содержит %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMigrateURL_EscapesPassword(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBName: "verify",
		DBUser: "verify", DBPassword: "p@ss/word", DBSSLMode: "disable",
	}
	got := cfg.MigrateURL()
	want := "pgx5://verify:p%40ss%2Fword@db:5432/verify?sslmode=disable"
	if got != want {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, want)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" a, ,b ,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("parseCSV() = %v, ожидается [a b c]", got)
	}
	if parseCSV("") != nil {
		t.Error("parseCSV(\"\") должен вернуть nil")
	}
}
