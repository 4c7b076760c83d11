package posthog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanity/internal/httpx"
	"vanity/internal/models"
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

	return NewClient(
		&structures.Config{
			PostHog: structures.PostHogConfig{APIKey: "phx_test", ProjectID: "123", Host: srv.URL},
		},
		httpx.New(5*time.Second),
		&nopLogger{},
		&nopMetrics{},
	)
}

// queryDispatcher decodes each query envelope and answers per query kind, the
// way a PostHog deployment would.
func queryDispatcher(t *testing.T, hogQL func(q string) string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/123/query/", r.URL.Path)
		assert.Equal(t, "Bearer phx_test", r.Header.Get("Authorization"))

		var envelope struct {
			Query struct {
				Kind         string        `json:"kind"`
				Query        string        `json:"query"`
				TrendsFilter *trendsFilter `json:"trendsFilter"`
				Interval     string        `json:"interval"`
			} `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))

		switch {
		case envelope.Query.Kind == "HogQLQuery":
			_, _ = w.Write([]byte(hogQL(envelope.Query.Query)))
		case envelope.Query.TrendsFilter != nil:
			_, _ = w.Write([]byte(`{"results":[{"aggregated_value":42}]}`))
		default:
			_, _ = w.Write([]byte(`{"results":[{"data":[10,20],"days":["2024-06-01","2024-06-02"]}]}`))
		}
	})
}

func testWindow(t *testing.T) models.Window {
	t.Helper()
	w, err := models.ParseWindow("2024-06-01", "2024-06-02")
	require.NoError(t, err)
	return w
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, "06/15", formatDay("2024-06-15"))
	assert.Equal(t, "06/15", formatDay("2024-06-15T00:00:00Z"))
	assert.Equal(t, "garbage", formatDay("garbage"))
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 7, asInt(float64(7.9)))
	assert.Equal(t, 7, asInt(7))
	assert.Equal(t, 7, asInt(int64(7)))
	assert.Equal(t, 0, asInt("7"))
}

func TestAggregateValue(t *testing.T) {
	v := 41.6
	resp := &queryResponse{Results: []trendsResult{{AggregatedValue: &v}}}
	assert.Equal(t, 42, aggregateValue(resp))

	resp = &queryResponse{Results: []trendsResult{{Data: []float64{1, 2, 3.4}}}}
	assert.Equal(t, 6, aggregateValue(resp))

	// Older deployments answer under "result".
	resp = &queryResponse{Result: []trendsResult{{Data: []float64{5}}}}
	assert.Equal(t, 5, aggregateValue(resp))

	assert.Equal(t, 0, aggregateValue(&queryResponse{}))
}

func TestFetchAnalytics_MissingCredentials(t *testing.T) {
	c := NewClient(&structures.Config{}, httpx.New(time.Second), &nopLogger{}, &nopMetrics{})

	_, err := c.FetchAnalytics(context.Background(), testWindow(t))
	var confErr *upstreamerr.ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "POSTHOG_API_KEY", confErr.Var)
}

func TestFetchAnalytics_FullPayload(t *testing.T) {
	handler := queryDispatcher(t, func(q string) string {
		if strings.Contains(q, "GROUP BY") {
			return `{"results":[
				["$pageview",1000,500],
				["signup",90,80],
				["purchase",50,40]
			],"columns":["event","count","unique_users"]}`
		}
		return `{"results":[[123.7]]}`
	})

	c := newTestClient(t, handler)

	data, err := c.FetchAnalytics(context.Background(), testWindow(t))
	require.NoError(t, err)

	assert.Equal(t, 42.0, data.Metrics.Visitors.Value)
	assert.Equal(t, 0, data.Metrics.Visitors.Trend)
	assert.Equal(t, 124.0, data.Metrics.AvgSessionDuration.Value)

	assert.Equal(t, ActiveUsers{DAU: 42, WAU: 42, MAU: 42}, data.ActiveUsers)

	require.Len(t, data.TimeSeries, 2)
	assert.Equal(t, models.TimeSeriesPoint{Date: "06/01", Visitors: 10, UniqueVisitors: 10}, data.TimeSeries[0])
	assert.Equal(t, models.TimeSeriesPoint{Date: "06/02", Visitors: 20, UniqueVisitors: 20}, data.TimeSeries[1])

	// The internal $pageview event is filtered out of the top list.
	require.Len(t, data.TopEvents, 2)
	assert.Equal(t, TopEvent{EventName: "signup", Count: 90, UniqueUsers: 80}, data.TopEvents[0])
}

func TestFetchAnalytics_Cached(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		queryDispatcher(t, func(string) string { return `{"results":[[0]]}` }).ServeHTTP(w, r)
	})

	c := newTestClient(t, handler)

	_, err := c.FetchAnalytics(context.Background(), testWindow(t))
	require.NoError(t, err)
	first := calls

	_, err = c.FetchAnalytics(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, first, calls)
}

func TestQuery_Unauthorized(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestClient(t, handler)

	_, err := c.fetchAggregate(context.Background(), nil, testWindow(t), "total")
	var authErr *upstreamerr.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestQuery_ProjectNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, handler)

	_, err := c.fetchAggregate(context.Background(), nil, testWindow(t), "total")
	var nfErr *upstreamerr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Contains(t, nfErr.Entity, "123")
}

func TestFetchTopEvents_DegradesToEmptyOnFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := newTestClient(t, handler)

	events := c.fetchTopEvents(context.Background(), testWindow(t), 10)
	assert.Empty(t, events)
}
