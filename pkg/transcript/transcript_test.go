package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/apperr"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/player?id=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got, err := VideoID(tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoID_Invalid(t *testing.T) {
	for _, link := range []string{"", "not a url", "https://www.youtube.com/", "https://youtu.be/"} {
		_, err := VideoID(link)
		assert.ErrorIs(t, err, apperr.ErrInvalidRequest, link)
	}
}

func TestThumbnailURL(t *testing.T) {
	assert.Equal(t, "http://img.youtube.com/vi/dQw4w9WgXcQ/0.jpg", ThumbnailURL("dQw4w9WgXcQ"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "hello world again", Join([]Segment{{Text: "hello"}, {Text: " world "}, {Text: ""}, {Text: "again"}}))
	assert.Equal(t, "", Join(nil))
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcripts/abc123def", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"video_id":"abc123def","language":"en","segments":[
			{"text":"welcome to","start":0,"duration":1.5},
			{"text":"the lecture","start":1.5,"duration":2}
		]}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", "secret", "", time.Second)
	text, err := f.Fetch(context.Background(), "abc123def")
	require.NoError(t, err)
	assert.Equal(t, "welcome to the lecture", text)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"detail":"no transcript"}`, apperr.ErrTranscriptUnavailable},
		{"empty", http.StatusOK, `{"segments":[]}`, apperr.ErrTranscriptUnavailable},
		{"server error", http.StatusBadGateway, `upstream down`, apperr.ErrTranscriptService},
		{"bad json", http.StatusOK, `{"segments":`, apperr.ErrTranscriptService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(srv.URL, "", "en", time.Second).Fetch(context.Background(), "abc123def")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(url, "", "en", time.Second).Fetch(context.Background(), "abc123def")
	assert.ErrorIs(t, err, apperr.ErrTranscriptService)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

type mapCache struct {
	mu     sync.Mutex
	items  map[string]string
	getErr error
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

type countingFetcher struct {
	calls int
	text  string
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestCachedFetcher(t *testing.T) {
	ctx := context.Background()
	next := &countingFetcher{text: "cached words"}
	cache := &mapCache{items: map[string]string{}}
	f := NewCachedFetcher(next, cache, "en", time.Hour)

	for range 3 {
		text, err := f.Fetch(ctx, "abc123def")
		require.NoError(t, err)
		assert.Equal(t, "cached words", text)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "cached words", cache.items["transcript:en:abc123def"])
}

func TestCachedFetcher_Failures(t *testing.T) {
	ctx := context.Background()

	// A broken cache falls through to the service.
	next := &countingFetcher{text: "words"}
	f := NewCachedFetcher(next, &mapCache{items: map[string]string{}, getErr: errors.New("conn refused")}, "en", time.Hour)
	text, err := f.Fetch(ctx, "abc123def")
	require.NoError(t, err)
	assert.Equal(t, "words", text)

	// Service errors are not cached.
	cache := &mapCache{items: map[string]string{}}
	failing := &countingFetcher{err: apperr.ErrTranscriptUnavailable}
	f = NewCachedFetcher(failing, cache, "en", time.Hour)
	_, err = f.Fetch(ctx, "abc123def")
	assert.ErrorIs(t, err, apperr.ErrTranscriptUnavailable)
	assert.Empty(t, cache.items)
}

func TestRedisCache_Integration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping Redis integration test: REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client)
	key := "transcript:test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, "hello", time.Minute))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}
