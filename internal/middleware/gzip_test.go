package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoDonation(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
		}
	}
}

func gzipBody(t *testing.T, s string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	const payload = `{"donationType":1,"amount":"25.00"}`

	tests := []struct {
		name           string
		status         int
		acceptGzip     bool
		compressedBody bool
		wantEncoding   string
	}{
		{name: "compresses successful response", status: http.StatusOK, acceptGzip: true, wantEncoding: "gzip"},
		{name: "created is compressed", status: http.StatusCreated, acceptGzip: true, wantEncoding: "gzip"},
		{name: "client without gzip", status: http.StatusOK},
		{name: "error response stays plain", status: http.StatusBadRequest, acceptGzip: true},
		{name: "no content stays plain", status: http.StatusNoContent, acceptGzip: true},
		{name: "gzipped request body", status: http.StatusOK, acceptGzip: true, compressedBody: true, wantEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(payload)
			if tt.compressedBody {
				body = gzipBody(t, payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/payment-intents", body)
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}
			if tt.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(echoDonation(tt.status)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.status {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.status)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}
			if tt.status == http.StatusNoContent {
				return
			}

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if want := `{"echo":` + payload + `}`; string(got) != want {
				t.Fatalf("body: got %q want %q", got, want)
			}
		})
	}
}

func TestGzipMiddleware_MalformedBody(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payment-intents", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(w, req)

	if called {
		t.Fatalf("next handler must not be called for malformed gzip body")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
}
