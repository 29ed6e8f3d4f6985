package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPixeldrainUpload(t *testing.T) {
	path := writeTempFile(t, "rom-raven.zip", "zip bytes")

	var gotMethod, gotPath, gotUser, gotKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotUser, gotKey, _ = r.BasicAuth()
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "abc123"})
	}))
	defer srv.Close()

	p := NewPixeldrain("secret-key").withEndpoints(srv.URL, "https://pixeldrain.com/u", time.Second)
	url, err := p.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if url != "https://pixeldrain.com/u/abc123" {
		t.Errorf("url = %q", url)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/file/rom-raven.zip" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "" || gotKey != "secret-key" {
		t.Errorf("basic auth = (%q, %q), want empty user with API key", gotUser, gotKey)
	}
	if string(gotBody) != "zip bytes" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestPixeldrainUpload_ServerError(t *testing.T) {
	path := writeTempFile(t, "rom.zip", "x")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage full", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	p := NewPixeldrain("k").withEndpoints(srv.URL, "https://pixeldrain.com/u", time.Second)
	if _, err := p.Upload(context.Background(), path); err == nil {
		t.Fatal("expected error on 507 response")
	}
}

func TestPixeldrainUpload_MissingID(t *testing.T) {
	path := writeTempFile(t, "rom.zip", "x")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewPixeldrain("k").withEndpoints(srv.URL, "https://pixeldrain.com/u", time.Second)
	if _, err := p.Upload(context.Background(), path); err == nil {
		t.Fatal("expected error when response lacks a file id")
	}
}

func TestPixeldrainUpload_MissingFile(t *testing.T) {
	p := NewPixeldrain("k")
	if _, err := p.Upload(context.Background(), "/no/such/file.zip"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
