package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"steam-price-api/internal/logger"
)

func TestLoader_InlineAndFile(t *testing.T) {
	dir := t.TempDir()
	proxyFile := filepath.Join(dir, "proxies.txt")
	content := "# comment line\n" +
		"Format: host:port\n" +
		"10.0.0.1:8080\n" +
		"\n" +
		"not a proxy line :::\n" +
		"10.0.0.2:3128\n"
	if err := os.WriteFile(proxyFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := NewLoader(logger.New("error"))
	proxies, err := loader.Load(context.Background(), Sources{
		Inline:   []string{"10.0.0.3:9000"},
		FilePath: proxyFile,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(proxies) != 3 {
		t.Fatalf("Load() returned %d proxies, want 3", len(proxies))
	}

	hosts := map[string]bool{}
	for _, proxy := range proxies {
		hosts[proxy.Host] = true
	}
	for _, want := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if !hosts[want] {
			t.Errorf("Load() missing proxy host %s", want)
		}
	}
}

func TestLoader_MissingFileIsNotFatal(t *testing.T) {
	loader := NewLoader(logger.New("error"))
	proxies, err := loader.Load(context.Background(), Sources{
		Inline:   []string{"10.0.0.1:8080"},
		FilePath: "does-not-exist.txt",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(proxies) != 1 {
		t.Errorf("Load() returned %d proxies, want 1", len(proxies))
	}
}

func TestLoader_RemoteAppendsAfterStatic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# public list\n10.1.1.1:8080\n10.1.1.2:8080\n"))
	}))
	defer server.Close()

	loader := NewLoader(logger.New("error"))
	proxies, err := loader.Load(context.Background(), Sources{
		Inline:    []string{"10.0.0.1:8080"},
		RemoteURL: server.URL,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(proxies) != 3 {
		t.Fatalf("Load() returned %d proxies, want 3", len(proxies))
	}

	// Remote entries come after the shuffled static block
	if proxies[1].Host != "10.1.1.1" || proxies[2].Host != "10.1.1.2" {
		t.Errorf("remote proxies not appended in order: %s, %s", proxies[1].Host, proxies[2].Host)
	}
}

func TestLoader_RemoteErrorWithStaticFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := NewLoader(logger.New("error"))
	proxies, err := loader.Load(context.Background(), Sources{
		Inline:    []string{"10.0.0.1:8080"},
		RemoteURL: server.URL,
	})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil when static proxies exist", err)
	}
	if len(proxies) != 1 {
		t.Errorf("Load() returned %d proxies, want the static one", len(proxies))
	}
}

func TestLoader_RemoteErrorWithoutFallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	loader := NewLoader(logger.New("error"))
	_, err := loader.Load(context.Background(), Sources{RemoteURL: server.URL})
	if err == nil {
		t.Error("Load() error = nil, want error when the only source fails")
	}
}
