package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGETSendsQueryAndDefaultHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("function"); got != "RSI" {
			t.Errorf("function = %q", got)
		}
		if got := r.Header.Get("X-Test"); got != "yes" {
			t.Errorf("X-Test header = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("X-Test", "yes"))
	resp, err := c.GET(context.Background(), "/query", url.Values{"function": {"RSI"}})
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var out struct{ OK bool }
	if err := resp.ParseJSON(&out); err != nil || !out.OK {
		t.Fatalf("ParseJSON = %+v, %v", out, err)
	}
}

func TestPOSTEncodesJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"chat_id":"1"}` {
			t.Errorf("body = %s", b)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.POST(context.Background(), "/send", map[string]string{"chat_id": "1"}); err != nil {
		t.Fatalf("POST: %v", err)
	}
}

func TestDoReturnsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).GET(context.Background(), "/", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusTooManyRequests || !strings.Contains(se.Body, "nope") {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestUploadWritesMultipart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("caption"); got != "EUR/USD" {
			t.Errorf("caption = %q", got)
		}
		f, hdr, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if hdr.Filename != "chart.png" || string(b) != "PNGDATA" {
			t.Errorf("file = %s %q", hdr.Filename, b)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Upload(context.Background(), "/photo",
		map[string]string{"caption": "EUR/USD"}, "photo", "chart.png", strings.NewReader("PNGDATA"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
}
