package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dossier/internal/config"
	"dossier/internal/domain"
)

func newTestCrawler(baseURL string) *BrowserlessCrawler {
	return NewBrowserlessCrawler(config.CrawlerConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

func TestBrowserlessFetchExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/content" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["url"] != "https://example.com/page" {
			t.Errorf("unexpected url in request: %v", body["url"])
		}
		w.Write([]byte(`<html><head><title>Example Page</title>
			<script>var x = 1;</script></head>
			<body><h1>Heading</h1><p>First paragraph.</p>
			<style>.a{color:red}</style>
			<p>Second paragraph.</p></body></html>`))
	}))
	defer srv.Close()

	page, err := newTestCrawler(srv.URL).Fetch(context.Background(), "https://example.com/page")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.Title != "Example Page" {
		t.Errorf("title = %q", page.Title)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("text missing %q: %q", want, page.Text)
		}
	}
	for _, reject := range []string{"var x", "color:red"} {
		if strings.Contains(page.Text, reject) {
			t.Errorf("text leaked non-visible content %q", reject)
		}
	}
}

func TestBrowserlessFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "render failed", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestCrawler(srv.URL).Fetch(context.Background(), "https://example.com")
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestBrowserlessFetchNetworkError(t *testing.T) {
	// Point at a closed port.
	_, err := newTestCrawler("http://127.0.0.1:1").Fetch(context.Background(), "https://example.com")
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
}

func TestBrowserlessTokenQueryParam(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	c := NewBrowserlessCrawler(config.CrawlerConfig{BaseURL: srv.URL, Token: "s3cret", Timeout: time.Second})
	if _, err := c.Fetch(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if gotToken != "s3cret" {
		t.Errorf("token = %q", gotToken)
	}
}
