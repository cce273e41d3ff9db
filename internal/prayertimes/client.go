// Package prayertimes предоставляет клиент внешнего API расписания намазов.
package prayertimes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

// ErrRateLimited возвращается, если API ограничило частоту запросов.
var ErrRateLimited = errors.New("prayer times api rate limited")

// RateLimitError содержит время, через которое можно повторить запрос.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Client инкапсулирует HTTP-взаимодействие с API расписания намазов.
type Client struct {
	baseURL string
	city    string
	country string
	method  int
	http    *retryablehttp.Client
}

type timingsResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings struct {
			Fajr    string `json:"Fajr"`
			Sunrise string `json:"Sunrise"`
			Dhuhr   string `json:"Dhuhr"`
			Asr     string `json:"Asr"`
			Maghrib string `json:"Maghrib"`
			Isha    string `json:"Isha"`
		} `json:"timings"`
	} `json:"data"`
}

// NewClient создаёт клиент для указанного адреса API и местоположения мечети.
func NewClient(baseURL, city, country string, method int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil
	rc.CheckRetry = retryPolicy
	// Последний ответ возвращается как есть, чтобы обработать 429 самостоятельно.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		city:    city,
		country: country,
		method:  method,
		http:    rc,
	}
}

// retryPolicy не повторяет 429: Retry-After отдаётся вызывающему через RateLimitError.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// GetTimings запрашивает расписание намазов на указанную дату.
func (c *Client) GetTimings(ctx context.Context, date time.Time) (*model.PrayerTimes, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("prayer times client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	q := url.Values{}
	q.Set("city", c.city)
	q.Set("country", c.country)
	q.Set("method", strconv.Itoa(c.method))

	endpoint := fmt.Sprintf("%s/v1/timingsByCity/%s?%s", base, date.Format("02-01-2006"), q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result timingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	t := result.Data.Timings
	return &model.PrayerTimes{
		Date:    date.Format(time.DateOnly),
		Fajr:    t.Fajr,
		Sunrise: t.Sunrise,
		Dhuhr:   t.Dhuhr,
		Asr:     t.Asr,
		Maghrib: t.Maghrib,
		Isha:    t.Isha,
	}, nil
}
