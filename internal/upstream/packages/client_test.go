package packages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func newTestClient(t *testing.T, handler http.Handler, conf structures.PackagesConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(
		&structures.Config{Packages: conf},
		httpx.New(5*time.Second),
		&nopLogger{},
		&nopMetrics{},
	)
	c.npmAPI = srv.URL
	c.pypiAPI = srv.URL
	c.cratesAPI = srv.URL
	return c
}

func testWindow(t *testing.T) models.Window {
	t.Helper()
	w, err := models.ParseWindow("2024-06-01", "2024-06-10")
	require.NoError(t, err)
	return w
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitNames("a, b ,c"))
	assert.Equal(t, []string{"one"}, splitNames("one"))
	assert.Nil(t, splitNames(""))
	assert.Nil(t, splitNames(" , ,"))
}

func TestTailSum(t *testing.T) {
	daily := []DailyDownloads{
		{Date: "2024-06-01", Downloads: 1},
		{Date: "2024-06-02", Downloads: 2},
		{Date: "2024-06-03", Downloads: 4},
	}
	assert.Equal(t, 6, tailSum(daily, 2))
	assert.Equal(t, 7, tailSum(daily, 3))
	// Shorter series than the requested tail sums everything.
	assert.Equal(t, 7, tailSum(daily, 7))
	assert.Equal(t, 0, tailSum(nil, 7))
}

func TestBuildTimeSeries_MergesRegistriesByDate(t *testing.T) {
	pkgs := []PackageDownloads{
		{Registry: RegistryNpm, DailyDownloads: []DailyDownloads{
			{Date: "2024-06-02", Downloads: 10},
			{Date: "2024-06-01", Downloads: 5},
		}},
		{Registry: RegistryNpm, DailyDownloads: []DailyDownloads{
			{Date: "2024-06-01", Downloads: 3},
		}},
		{Registry: RegistryPypi, DailyDownloads: []DailyDownloads{
			{Date: "2024-06-01", Downloads: 7},
		}},
	}

	series := buildTimeSeries(pkgs)
	require.Len(t, series, 2)
	assert.Equal(t, SeriesPoint{Date: "2024-06-01", Npm: 8, Pypi: 7}, series[0])
	assert.Equal(t, SeriesPoint{Date: "2024-06-02", Npm: 10}, series[1])
}

func TestFetchNpmPackage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/downloads/range/2024-06-01:2024-06-10/leftpad", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"downloads":[
			{"day":"2024-06-01","downloads":100},
			{"day":"2024-06-02","downloads":200}
		],"package":"leftpad"}`))
	})

	c := newTestClient(t, mux, structures.PackagesConfig{})

	pkg, err := c.fetchNpmPackage(context.Background(), "leftpad", testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, RegistryNpm, pkg.Registry)
	assert.Equal(t, 300, pkg.TotalDownloads)
	assert.Equal(t, 300, pkg.WeeklyDownloads)
	assert.Equal(t, "https://www.npmjs.com/package/leftpad", pkg.URL)
	require.Len(t, pkg.DailyDownloads, 2)
}

func TestFetchNpmPackage_NotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), structures.PackagesConfig{})

	_, err := c.fetchNpmPackage(context.Background(), "ghost-pkg", testWindow(t))
	var nfErr *upstreamerr.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Contains(t, nfErr.Entity, "ghost-pkg")
}

func TestFetchPypiPackage_PrefersWithoutMirrorsAndFiltersWindow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/packages/requests/overall", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"category":"with_mirrors","date":"2024-06-01","downloads":999},
			{"category":"without_mirrors","date":"2024-06-01","downloads":50},
			{"category":"without_mirrors","date":"2024-06-02","downloads":60},
			{"category":"without_mirrors","date":"2024-05-01","downloads":40}
		],"package":"requests","type":"overall_downloads"}`))
	})

	c := newTestClient(t, mux, structures.PackagesConfig{})

	pkg, err := c.fetchPypiPackage(context.Background(), "requests", testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, 110, pkg.TotalDownloads)
	require.Len(t, pkg.DailyDownloads, 2)
	assert.Equal(t, "2024-06-01", pkg.DailyDownloads[0].Date)
	assert.Equal(t, 50, pkg.DailyDownloads[0].Downloads)
}

func TestFetchCratesPackage_EstimatesFromRecent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/crates/serde", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"crate":{"id":"serde","name":"serde","downloads":9000,
			"recent_downloads":900,"created_at":"2015-01-01T00:00:00Z"}}`))
	})

	c := newTestClient(t, mux, structures.PackagesConfig{})

	pkg, err := c.fetchCratesPackage(context.Background(), "serde")
	require.NoError(t, err)
	assert.Equal(t, 9000, pkg.TotalDownloads)
	// 900 recent over 90 days is 10 per day.
	assert.Equal(t, 70, pkg.WeeklyDownloads)
	assert.Equal(t, 300, pkg.MonthlyDownloads)
	assert.Empty(t, pkg.DailyDownloads)
	assert.Equal(t, "2015-01-01T00:00:00Z", pkg.CreatedAt)
}

func TestFetchCratesPackage_RateLimited(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := newTestClient(t, handler, structures.PackagesConfig{})

	_, err := c.fetchCratesPackage(context.Background(), "serde")
	var rlErr *upstreamerr.RateLimitError
	assert.ErrorAs(t, err, &rlErr)
}

func TestFetchAnalytics_NoPackagesConfigured(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), structures.PackagesConfig{})

	_, err := c.FetchAnalytics(context.Background(), testWindow(t))
	var confErr *upstreamerr.ConfigError
	assert.ErrorAs(t, err, &confErr)
}

func TestFetchAnalytics_PartialFailureSucceeds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/downloads/range/2024-06-01:2024-06-10/good", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"downloads":[{"day":"2024-06-01","downloads":42}],"package":"good"}`))
	})
	// Everything else, including the bad package, 404s.

	c := newTestClient(t, mux, structures.PackagesConfig{Npm: "good,bad"})

	data, err := c.FetchAnalytics(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, data.Packages, 1)
	assert.Equal(t, "good", data.Packages[0].Name)
	assert.Equal(t, 42, data.Metrics.TotalDownloads)
	assert.Equal(t, 1, data.Metrics.PackageCount)
	require.NotNil(t, data.TopPackage)
	assert.Equal(t, "good", data.TopPackage.Name)
	assert.Equal(t, 42, data.TopPackage.WeeklyDownloads)
}

func TestFetchAnalytics_AllFailuresEnumerated(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), structures.PackagesConfig{Npm: "one", Pypi: "two"})

	_, err := c.FetchAnalytics(context.Background(), testWindow(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch any packages")
	assert.Contains(t, err.Error(), "one")
	assert.Contains(t, err.Error(), "two")
}
