package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venuecrawl/internal/model"
)

func newTestDownloader(sizeLimit int) *Downloader {
	return New("test-bot/1.0", 2*time.Second, 2*time.Second, 2*time.Second, sizeLimit, false, time.Hour)
}

func withDeadline(d time.Duration) context.Context {
	ctx, _ := context.WithTimeout(context.Background(), d)
	return ctx
}

func TestFetchReturnsCleanedTextOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>Open Monday to Friday, 9am-5pm.</p></body></html>"))
	}))
	defer srv.Close()

	dl := newTestDownloader(2_000_000)
	page := dl.Fetch(withDeadline(5*time.Second), srv.URL)

	if page.Reason != model.ReasonOK {
		t.Fatalf("expected ok, got reason=%s", page.Reason)
	}
	if page.ContentHash == "" {
		t.Fatal("expected a content hash")
	}
	if !strings.Contains(page.CleanedText, "Monday") {
		t.Fatalf("expected cleaned text to mention hours, got: %q", page.CleanedText)
	}
}

func TestFetchRejectsNonHTMLMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	dl := newTestDownloader(2_000_000)
	page := dl.Fetch(withDeadline(5*time.Second), srv.URL)

	if page.Reason != model.ReasonInvalidMIME {
		t.Fatalf("expected invalid_mime, got %s", page.Reason)
	}
}

func TestFetchRejectsNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dl := newTestDownloader(2_000_000)
	page := dl.Fetch(withDeadline(5*time.Second), srv.URL)

	if page.Reason != model.ReasonNon200Status {
		t.Fatalf("expected non_200_status, got %s", page.Reason)
	}
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	dl := newTestDownloader(1000)
	page := dl.Fetch(withDeadline(5*time.Second), srv.URL)

	if page.Reason != model.ReasonSizeLimitExceeded {
		t.Fatalf("expected size_limit_exceeded, got %s", page.Reason)
	}
}

func TestFetchHonorsRobotsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	dl := newTestDownloader(2_000_000)
	page := dl.Fetch(withDeadline(5*time.Second), srv.URL)

	if page.Reason != model.ReasonRobotsDisallowed {
		t.Fatalf("expected robots_disallowed, got %s", page.Reason)
	}
}

func TestFetchReturnsTimeBudgetExceededWhenDeadlinePassed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	dl := newTestDownloader(2_000_000)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	page := dl.Fetch(ctx, srv.URL)
	if page.Reason != model.ReasonTimeBudgetExceeded {
		t.Fatalf("expected time_budget_exceeded, got %s", page.Reason)
	}
}
