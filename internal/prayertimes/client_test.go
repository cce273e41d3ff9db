package prayertimes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetTimings_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/timingsByCity/05-03-2026" {
			t.Fatalf("path = %s, want /v1/timingsByCity/05-03-2026", r.URL.Path)
		}
		if got := r.URL.Query().Get("city"); got != "Toronto" {
			t.Fatalf("city = %q, want Toronto", got)
		}
		if got := r.URL.Query().Get("method"); got != "2" {
			t.Fatalf("method = %q, want 2", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"timings":{"Fajr":"05:41","Sunrise":"06:59","Dhuhr":"12:42","Asr":"15:52","Maghrib":"18:25","Isha":"19:43"}}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "Toronto", "Canada", 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.GetTimings(ctx, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetTimings error: %v", err)
	}
	if res.Date != "2026-03-05" {
		t.Fatalf("date = %q, want 2026-03-05", res.Date)
	}
	if res.Fajr != "05:41" || res.Maghrib != "18:25" || res.Isha != "19:43" {
		t.Fatalf("unexpected timings: %+v", res)
	}
}

func TestGetTimings_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "Toronto", "Canada", 2)
	client.http.RetryMax = 0

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.GetTimings(ctx, time.Now())
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if rateErr.RetryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", rateErr.RetryAfter)
	}
}

func TestGetTimings_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"timings":{"Fajr":"05:41"}}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "Toronto", "Canada", 2)
	client.http.RetryWaitMin = time.Millisecond
	client.http.RetryWaitMax = 5 * time.Millisecond

	res, err := client.GetTimings(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("GetTimings error: %v", err)
	}
	if res.Fajr != "05:41" {
		t.Fatalf("fajr = %q, want 05:41", res.Fajr)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestGetTimings_NotConfigured(t *testing.T) {
	var client *Client

	_, err := client.GetTimings(context.Background(), time.Now())
	if err == nil {
		t.Fatalf("expected error for nil client")
	}
}
