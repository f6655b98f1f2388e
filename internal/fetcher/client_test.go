package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient создаёт клиент для httptest-серверов на 127.0.0.1.
func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	opts.AllowPrivate = true
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = 1 << 20
	}
	c, err := New(opts, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	return c
}

func TestFetch_Success(t *testing.T) {
	content := bytes.Repeat([]byte("video-frame"), 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("метод = %s, ожидается GET", r.Method)
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	data, err := c.Fetch(context.Background(), srv.URL+"/clip.mp4")
	if err != nil {
		t.Fatalf("Fetch() ошибка: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/big":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
		case "/big-chunked":
			// Flush до конца ответа: без Content-Length, превышение обнаруживается при чтении
			for i := 0; i < 4; i++ {
				_, _ = w.Write(bytes.Repeat([]byte("y"), 512))
				w.(http.Flusher).Flush()
			}
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, Options{MaxBytes: 1024, Timeout: 200 * time.Millisecond})

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"404", srv.URL + "/missing", ErrFetch},
		{"превышение Content-Length", srv.URL + "/big", ErrTooLarge},
		{"превышение без Content-Length", srv.URL + "/big-chunked", ErrTooLarge},
		{"таймаут", srv.URL + "/slow", ErrFetch},
		{"недоступный хост", "http://127.0.0.1:1/clip.mp4", ErrFetch},
		{"схема file", "file:///etc/passwd", ErrInvalidURL},
		{"относительная ссылка", "/clip.mp4", ErrInvalidURL},
		{"мусор", "::not a url", ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Fetch(context.Background(), tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fetch(%q): ожидалась %v, получено %v", tt.url, tt.wantErr, err)
			}
		})
	}
}

func TestFetch_ExactLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("z"), 1024))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{MaxBytes: 1024})
	data, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() ошибка на границе лимита: %v", err)
	}
	if len(data) != 1024 {
		t.Errorf("len = %d, ожидается 1024", len(data))
	}
}

func TestFetch_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Fetch(ctx, srv.URL); !errors.Is(err, ErrFetch) {
		t.Errorf("ожидалась ErrFetch, получено %v", err)
	}
}

func TestFetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// 1 запрос в 10 секунд: второй запрос не дождётся токена за таймаут
	c := newTestClient(t, Options{Rate: 0.1, Burst: 1, Timeout: 100 * time.Millisecond})

	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("первый Fetch() ошибка: %v", err)
	}
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("второй Fetch(): ожидалась ErrFetch, получено %v", err)
	}
}

func TestFetch_BlocksInternalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal"))
	}))
	defer srv.Close()

	c, err := New(Options{Timeout: 2 * time.Second, MaxBytes: 1 << 20}, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}

	_, port, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	for _, link := range []string{srv.URL, "http://localhost:" + port + "/v"} {
		_, err := c.Fetch(context.Background(), link)
		if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrBlockedAddress) {
			t.Errorf("Fetch(%s): ожидалась ErrFetch/ErrBlockedAddress, получено %v", link, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("сервер получил %d запросов, ожидается 0", n)
	}
}

func TestIsInternal(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.10", true},
		{"169.254.169.254", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"0.0.0.0", true},
		{"::", true},
		{"100.64.0.1", true},
		{"::ffff:127.0.0.1", true},
		{"93.184.216.34", false},
		{"2606:2800:220:1::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := isInternal(netip.MustParseAddr(tt.addr)); got != tt.want {
				t.Errorf("isInternal(%s) = %v, ожидается %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{MaxBytes: 1}, testLogger()); err == nil {
		t.Error("ожидалась ошибка при нулевом таймауте")
	}
	if _, err := New(Options{Timeout: time.Second}, testLogger()); err == nil {
		t.Error("ожидалась ошибка при нулевом лимите размера")
	}

	badCA := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(badCA, []byte("not a pem"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := New(Options{Timeout: time.Second, MaxBytes: 1, CACertPath: badCA}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "PEM") {
		t.Errorf("ожидалась ошибка PEM, получено %v", err)
	}
}
