package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanity/internal/httpx"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

type nopLogger struct{}

func (n *nopLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (n *nopLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (n *nopLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (n *nopLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (n *nopLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (n *nopLogger) Close()                                                  {}

type nopMetrics struct{}

func (n *nopMetrics) IncRequestsTotal(_ string, _ int)                  {}
func (n *nopMetrics) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (n *nopMetrics) IncUpstreamRequests(_, _ string)                   {}
func (n *nopMetrics) ObserveUpstreamDuration(_ string, _ time.Duration) {}
func (n *nopMetrics) IncCacheHits()                                     {}
func (n *nopMetrics) IncCacheMisses()                                   {}
func (n *nopMetrics) IncRateLimited()                                   {}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(
		&structures.Config{
			YouTube: structures.YouTubeConfig{APIKey: "yt-key", ChannelID: "UC123"},
		},
		httpx.New(5*time.Second),
		&nopLogger{},
		&nopMetrics{},
	)
	c.api = srv.URL
	return c
}

func channelJSON() string {
	return `{"items":[{
		"snippet":{"title":"My Channel","customUrl":"@mychannel"},
		"statistics":{"viewCount":"100000","subscriberCount":"2500","videoCount":"2"},
		"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}
	}]}`
}

func TestViewsByMonth(t *testing.T) {
	videos := []Video{
		{PublishedAt: "2024-01-05T10:00:00Z", ViewCount: 100},
		{PublishedAt: "2024-01-20T10:00:00Z", ViewCount: 50},
		{PublishedAt: "2024-03-01T10:00:00Z", ViewCount: 10},
		{PublishedAt: "not a date", ViewCount: 999},
	}

	points := viewsByMonth(videos)
	require.Len(t, points, 2)
	assert.Equal(t, ViewsByMonthPoint{Month: "2024-01", Views: 150, VideoCount: 2}, points[0])
	assert.Equal(t, ViewsByMonthPoint{Month: "2024-03", Views: 10, VideoCount: 1}, points[1])
}

func TestAtoi(t *testing.T) {
	assert.Equal(t, 42, atoi("42"))
	assert.Equal(t, 0, atoi(""))
	assert.Equal(t, 0, atoi("n/a"))
}

func TestFetchAnalytics_MissingCredentials(t *testing.T) {
	c := NewClient(&structures.Config{}, httpx.New(time.Second), &nopLogger{}, &nopMetrics{})

	_, err := c.FetchAnalytics(context.Background())
	var confErr *upstreamerr.ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "YOUTUBE_API_KEY", confErr.Var)
}

func TestFetchAnalytics_FullPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yt-key", r.URL.Query().Get("key"))
		assert.Equal(t, "UC123", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(channelJSON()))
	})
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UU123", r.URL.Query().Get("playlistId"))
		// Two pages to exercise pagination.
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"nextPageToken":"page2","items":[{"contentDetails":{"videoId":"vid1"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"vid2"}}]}`))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid1,vid2", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"vid1","snippet":{"title":"First","publishedAt":"2024-01-05T10:00:00Z",
				"thumbnails":{"default":{"url":"https://i.ytimg.com/vid1/default.jpg"}}},
			 "statistics":{"viewCount":"300","likeCount":"30","commentCount":"3"}},
			{"id":"vid2","snippet":{"title":"Second","publishedAt":"2024-02-10T10:00:00Z",
				"thumbnails":{"medium":{"url":"https://i.ytimg.com/vid2/medium.jpg"}}},
			 "statistics":{"viewCount":"900","likeCount":"90","commentCount":"9"}}
		]}`))
	})

	c := newTestClient(t, mux)

	data, err := c.FetchAnalytics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100000, data.Metrics.TotalViews)
	assert.Equal(t, 2500, data.Metrics.Subscribers)
	assert.Equal(t, "My Channel", data.Metrics.ChannelTitle)
	assert.Equal(t, "https://www.youtube.com/@mychannel", data.Metrics.ChannelURL)

	// Sorted by views, descending.
	require.Len(t, data.Videos, 2)
	assert.Equal(t, "vid2", data.Videos[0].ID)
	assert.Equal(t, "https://i.ytimg.com/vid2/medium.jpg", data.Videos[0].ThumbnailURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid2", data.Videos[0].URL)
	assert.Equal(t, "https://i.ytimg.com/vid1/default.jpg", data.Videos[1].ThumbnailURL)

	require.Len(t, data.ViewsByMonth, 2)
	assert.Equal(t, ViewsByMonthPoint{Month: "2024-01", Views: 300, VideoCount: 1}, data.ViewsByMonth[0])
}

func TestFetchAnalytics_ChannelNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	c := newTestClient(t, mux)

	_, err := c.FetchAnalytics(context.Background())
	var nfErr *upstreamerr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Contains(t, nfErr.Entity, "UC123")
}

func TestFetchAnalytics_QuotaExhausted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c := newTestClient(t, handler)

	_, err := c.FetchAnalytics(context.Background())
	var rlErr *upstreamerr.RateLimitError
	assert.ErrorAs(t, err, &rlErr)
}

func TestFetchAnalytics_Cached(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(channelJSON()))
	})
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	c := newTestClient(t, mux)

	_, err := c.FetchAnalytics(context.Background())
	require.NoError(t, err)
	_, err = c.FetchAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
