package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryMedium_FindFetchPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium(0)

	if _, ok, err := m.Find(ctx, "categories"); err != nil || ok {
		t.Fatalf("expected empty medium, got ok=%v err=%v", ok, err)
	}

	if err := m.Put(ctx, "categories.json", []byte(`{"version":1}`)); err != nil {
		t.Fatal(err)
	}
	url, ok, err := m.Find(ctx, "categories")
	if err != nil || !ok {
		t.Fatalf("expected blob, got ok=%v err=%v", ok, err)
	}

	data, err := m.Fetch(ctx, url+"?t=abc")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"version":1}` {
		t.Fatalf("unexpected data %q", data)
	}
	if m.Puts() != 1 {
		t.Fatalf("expected 1 put, got %d", m.Puts())
	}
}

func TestMemoryMedium_Lag(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium(time.Minute)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	if err := m.Put(ctx, "doc", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Fetch(ctx, memoryScheme+"doc"); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error before first propagation, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := m.Put(ctx, "doc", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, err := m.Fetch(ctx, memoryScheme+"doc")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected stale v1 within lag, got %q", data)
	}

	now = now.Add(2 * time.Minute)
	data, _ = m.Fetch(ctx, memoryScheme+"doc")
	if string(data) != "v2" {
		t.Fatalf("expected v2 after lag, got %q", data)
	}
}

func TestMemoryMedium_FailNextFetches(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium(0)
	_ = m.Put(ctx, "doc", []byte("x"))
	m.FailNextFetches(2)

	for i := 0; i < 2; i++ {
		if _, err := m.Fetch(ctx, memoryScheme+"doc"); !errors.Is(err, ErrTransient) {
			t.Fatalf("fetch %d: expected transient error, got %v", i, err)
		}
	}
	if _, err := m.Fetch(ctx, memoryScheme+"doc"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestMemoryMedium_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedium(0)

	if _, err := m.Fetch(ctx, memoryScheme+"missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Fetch(ctx, "https://elsewhere/doc"); err == nil {
		t.Fatal("expected error for foreign url")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Put(cancelled, "doc", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSQLiteMedium(t *testing.T) {
	ctx := context.Background()
	m, err := NewSQLiteMedium(filepath.Join(t.TempDir(), "nested", "blobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := m.Find(ctx, "categories"); err != nil || ok {
		t.Fatalf("expected no blob, got ok=%v err=%v", ok, err)
	}

	for _, body := range []string{"first", "second"} {
		if err := m.Put(ctx, "categories.json", []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	url, ok, err := m.Find(ctx, "categories")
	if err != nil || !ok {
		t.Fatalf("expected blob, got ok=%v err=%v", ok, err)
	}
	data, err := m.Fetch(ctx, url+"?t=1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("expected overwrite, got %q", data)
	}

	if _, err := m.Fetch(ctx, sqlScheme+"missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteMedium_PrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	m, err := NewSQLiteMedium(filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	_ = m.Put(ctx, "cat_x.json", []byte("x"))
	if _, ok, _ := m.Find(ctx, "cat%"); ok {
		t.Fatal("wildcard in prefix should not match")
	}
	if _, ok, _ := m.Find(ctx, "cat_"); !ok {
		t.Fatal("expected literal underscore prefix to match")
	}
}

// fakeObjectStore mimics the list/get/put surface of a hosted blob service.
type fakeObjectStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failGet int
	auth    []string
	queries []string
}

func (f *fakeObjectStore) handler(base func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		prefix := r.URL.Query().Get("prefix")
		var items []string
		for p := range f.blobs {
			if strings.HasPrefix(p, prefix) {
				items = append(items, fmt.Sprintf(`{"url":"%s/files/%s","pathname":"%s"}`, base(), p, p))
			}
		}
		fmt.Fprintf(w, `{"blobs":[%s]}`, strings.Join(items, ","))
	})
	mux.HandleFunc("GET /files/{path}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.queries = append(f.queries, r.URL.RawQuery)
		if f.failGet > 0 {
			f.failGet--
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		data, ok := f.blobs[r.PathValue("path")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	})
	mux.HandleFunc("PUT /{path}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		f.blobs[r.PathValue("path")] = data
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestHTTPMedium(t *testing.T) {
	ctx := context.Background()
	fake := &fakeObjectStore{blobs: make(map[string][]byte)}
	var srv *httptest.Server
	srv = httptest.NewServer(fake.handler(func() string { return srv.URL }))
	defer srv.Close()

	m := NewHTTPMedium(srv.URL+"/", "secret")

	if _, ok, err := m.Find(ctx, "categories"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := m.Put(ctx, "categories.json", []byte(`{"version":1}`)); err != nil {
		t.Fatal(err)
	}

	url, ok, err := m.Find(ctx, "categories")
	if err != nil || !ok {
		t.Fatalf("expected blob, got ok=%v err=%v", ok, err)
	}
	data, err := m.Fetch(ctx, url+"?t=token-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"version":1}` {
		t.Fatalf("unexpected body %q", data)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, a := range fake.auth {
		if a != "Bearer secret" {
			t.Fatalf("expected bearer auth, got %q", a)
		}
	}
	if len(fake.queries) != 1 || fake.queries[0] != "t=token-1" {
		t.Fatalf("expected cache-busting token to reach server, got %v", fake.queries)
	}
}

func TestHTTPMedium_FetchErrors(t *testing.T) {
	ctx := context.Background()
	fake := &fakeObjectStore{blobs: map[string][]byte{"doc": []byte("x")}, failGet: 1}
	var srv *httptest.Server
	srv = httptest.NewServer(fake.handler(func() string { return srv.URL }))
	defer srv.Close()

	m := NewHTTPMedium(srv.URL, "")

	if _, err := m.Fetch(ctx, srv.URL+"/files/doc"); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error on 502, got %v", err)
	}
	if _, err := m.Fetch(ctx, srv.URL+"/files/doc"); err != nil {
		t.Fatalf("expected success after failure, got %v", err)
	}
	if _, err := m.Fetch(ctx, srv.URL+"/files/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		closer  bool
	}{
		{"memory", Config{Backend: "memory"}, false, false},
		{"sqlite from dsn", Config{DSN: filepath.Join(t.TempDir(), "a.db")}, false, true},
		{"explicit sqlite", Config{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "b.db")}, false, true},
		{"http", Config{Backend: "http", URL: "http://localhost:1"}, false, false},
		{"http without url", Config{Backend: "http"}, true, false},
		{"unknown", Config{Backend: "s3"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, closer, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if m == nil {
				t.Fatal("expected medium")
			}
			if (closer != nil) != tt.closer {
				t.Fatalf("closer presence = %v, want %v", closer != nil, tt.closer)
			}
			if closer != nil {
				closer.Close()
			}
		})
	}
}

func TestBackendFromDSN(t *testing.T) {
	tests := map[string]string{
		"":                          "sqlite",
		"data/x.db":                 "sqlite",
		"postgres://u@h/db":         "postgres",
		"postgresql://u@h/db":       "postgres",
		"file:test.db?cache=shared": "sqlite",
	}
	for dsn, want := range tests {
		if got := backendFromDSN(dsn); got != want {
			t.Errorf("backendFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}
