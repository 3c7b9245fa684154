// Package transcript fetches the spoken text of YouTube videos from a
// transcript service.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/barekit/lectern/pkg/apperr"
)

// Fetcher returns the full transcript of a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, videoID string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, videoID string) (string, error) {
	return f(ctx, videoID)
}

// Segment is one caption line returned by the service.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type response struct {
	VideoID  string    `json:"video_id"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Join concatenates segment texts with single spaces.
func Join(segments []Segment) string {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}

// HTTPFetcher calls GET {baseURL}/transcripts/{videoID}?lang={language}.
type HTTPFetcher struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewHTTPFetcher creates a new HTTPFetcher. timeout bounds each request.
func NewHTTPFetcher(baseURL, apiKey, language string, timeout time.Duration) *HTTPFetcher {
	if language == "" {
		language = "en"
	}
	return &HTTPFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		language: language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch implements Fetcher. A missing or empty transcript is
// apperr.ErrTranscriptUnavailable; anything else that goes wrong is
// apperr.ErrTranscriptService.
func (f *HTTPFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	endpoint := fmt.Sprintf("%s/transcripts/%s?lang=%s", f.baseURL, url.PathEscape(videoID), url.QueryEscape(f.language))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", apperr.ErrTranscriptService, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %w", apperr.ErrTranscriptService, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: video %s", apperr.ErrTranscriptUnavailable, videoID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", apperr.ErrTranscriptService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", apperr.ErrTranscriptService, err)
	}

	text := Join(r.Segments)
	if text == "" {
		return "", fmt.Errorf("%w: video %s has an empty transcript", apperr.ErrTranscriptUnavailable, videoID)
	}
	return text, nil
}

// Cache stores transcripts by video id.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache implements Cache with Redis strings.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedFetcher serves transcripts from a Cache before asking next.
// Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	next     Fetcher
	cache    Cache
	ttl      time.Duration
	language string
}

// NewCachedFetcher creates a new CachedFetcher.
func NewCachedFetcher(next Fetcher, cache Cache, language string, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, language: language}
}

func (f *CachedFetcher) key(videoID string) string {
	return fmt.Sprintf("transcript:%s:%s", f.language, videoID)
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	key := f.key(videoID)
	if text, ok, err := f.cache.Get(ctx, key); err != nil {
		slog.Warn("transcript cache read failed", "video_id", videoID, "error", err)
	} else if ok {
		return text, nil
	}

	text, err := f.next.Fetch(ctx, videoID)
	if err != nil {
		return "", err
	}

	if err := f.cache.Set(ctx, key, text, f.ttl); err != nil {
		slog.Warn("transcript cache write failed", "video_id", videoID, "error", err)
	}
	return text, nil
}
