// Package ganalytics reads traffic data from Google Analytics 4 properties
// through the Data API, authenticated with a service account.
package ganalytics

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/models"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

const (
	source  = "google-analytics"
	apiBase = "https://analyticsdata.googleapis.com/v1beta"
	scope   = "https://www.googleapis.com/auth/analytics.readonly"
)

type Interface interface {
	FetchBlogAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error)
	FetchAnalyticsForProperty(ctx context.Context, propertyID string, window models.Window) (*AnalyticsData, error)
}

type Client struct {
	conf    structures.GoogleAnalyticsConfig
	http    *httpx.Client
	data    *cache.Store[*AnalyticsData]
	logger  providers.Logger
	metrics providers.MetricsProviderInterface

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

func NewClient(conf *structures.Config, hc *httpx.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	ttl := conf.Cache.ClientTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:    conf.Analytics,
		http:    hc,
		data:    cache.New[*AnalyticsData](ttl),
		logger:  logger,
		metrics: metrics,
	}
}

// tokenSource lazily builds the service account token source. The key is
// stored base64-encoded in configuration; a malformed key is a configuration
// failure, not an upstream one.
func (c *Client) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens, nil
	}

	if c.conf.ServiceAccountKey == "" {
		return nil, &upstreamerr.ConfigError{Var: "GOOGLE_SERVICE_ACCOUNT_KEY", Reason: "not set"}
	}
	raw, err := base64.StdEncoding.DecodeString(c.conf.ServiceAccountKey)
	if err != nil {
		return nil, &upstreamerr.ConfigError{Var: "GOOGLE_SERVICE_ACCOUNT_KEY", Reason: "not valid base64-encoded JSON"}
	}
	jwtConf, err := google.JWTConfigFromJSON(raw, scope)
	if err != nil {
		return nil, &upstreamerr.ConfigError{Var: "GOOGLE_SERVICE_ACCOUNT_KEY", Reason: "not a valid service account key"}
	}

	c.tokens = jwtConf.TokenSource(context.WithoutCancel(ctx))
	return c.tokens, nil
}

// runReport posts one report request for the property and classifies the
// response status. Token exchange failures count as infrastructure auth
// failures rather than rejected credentials.
func (c *Client) runReport(ctx context.Context, propertyID string, req runReportRequest) (*runReportResponse, error) {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	token, err := ts.Token()
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return nil, &upstreamerr.AuthError{Source: source, Infra: true}
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", apiBase, propertyID)
	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}

	var resp runReportResponse
	status, err := c.http.PostJSON(ctx, url, headers, req, &resp)
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return nil, err
	}
	if status < 200 || status >= 300 {
		c.metrics.IncUpstreamRequests(source, "error")
		switch status {
		case http.StatusUnauthorized:
			return nil, &upstreamerr.AuthError{Source: source}
		case http.StatusForbidden:
			return nil, &upstreamerr.PermissionError{Source: source}
		case http.StatusNotFound:
			return nil, &upstreamerr.NotFoundError{Source: source, Entity: "property '" + propertyID + "'"}
		case http.StatusTooManyRequests:
			return nil, &upstreamerr.RateLimitError{Source: source}
		default:
			return nil, &upstreamerr.UpstreamError{Source: source, Status: status}
		}
	}
	c.metrics.IncUpstreamRequests(source, "ok")
	return &resp, nil
}

func metricInt(row *reportRow, i int) int {
	if row == nil || i >= len(row.MetricValues) {
		return 0
	}
	v, _ := strconv.Atoi(row.MetricValues[i].Value)
	return v
}

func metricFloat(row *reportRow, i int) float64 {
	if row == nil || i >= len(row.MetricValues) {
		return 0
	}
	v, _ := strconv.ParseFloat(row.MetricValues[i].Value, 64)
	return v
}

func dimension(row *reportRow, i int) string {
	if row == nil || i >= len(row.DimensionValues) {
		return ""
	}
	return row.DimensionValues[i].Value
}

// formatDate turns the API's YYYYMMDD dates into MM/DD for chart labels.
func formatDate(s string) string {
	if len(s) == 8 {
		return s[4:6] + "/" + s[6:8]
	}
	return s
}

type aggregates struct {
	sessions int
	users    int
	duration float64
}

func (c *Client) fetchAggregates(ctx context.Context, propertyID string, w models.Window) (aggregates, error) {
	resp, err := c.runReport(ctx, propertyID, runReportRequest{
		DateRanges: []dateRange{{StartDate: w.StartDate(), EndDate: w.EndDate()}},
		Metrics: []metricSpec{
			{Name: "sessions"},
			{Name: "totalUsers"},
			{Name: "averageSessionDuration"},
		},
	})
	if err != nil {
		return aggregates{}, err
	}
	var row *reportRow
	if len(resp.Rows) > 0 {
		row = &resp.Rows[0]
	}
	return aggregates{
		sessions: metricInt(row, 0),
		users:    metricInt(row, 1),
		duration: metricFloat(row, 2),
	}, nil
}

func (c *Client) fetchTimeSeries(ctx context.Context, propertyID string, w models.Window) ([]models.TimeSeriesPoint, error) {
	resp, err := c.runReport(ctx, propertyID, runReportRequest{
		DateRanges: []dateRange{{StartDate: w.StartDate(), EndDate: w.EndDate()}},
		Dimensions: []dimensionSpec{{Name: "date"}},
		Metrics:    []metricSpec{{Name: "sessions"}, {Name: "totalUsers"}},
		OrderBys:   []orderBy{{Dimension: &dimensionOrderBy{DimensionName: "date"}}},
	})
	if err != nil {
		return nil, err
	}
	series := make([]models.TimeSeriesPoint, 0, len(resp.Rows))
	for i := range resp.Rows {
		row := &resp.Rows[i]
		series = append(series, models.TimeSeriesPoint{
			Date:           formatDate(dimension(row, 0)),
			Visitors:       metricInt(row, 0),
			UniqueVisitors: metricInt(row, 1),
		})
	}
	return series, nil
}

func (c *Client) fetchTopPages(ctx context.Context, propertyID string, w models.Window) ([]TopPage, error) {
	resp, err := c.runReport(ctx, propertyID, runReportRequest{
		DateRanges: []dateRange{{StartDate: w.StartDate(), EndDate: w.EndDate()}},
		Dimensions: []dimensionSpec{{Name: "pagePath"}, {Name: "pageTitle"}},
		Metrics: []metricSpec{
			{Name: "screenPageViews"},
			{Name: "totalUsers"},
			{Name: "userEngagementDuration"},
			{Name: "bounceRate"},
		},
		OrderBys: []orderBy{{Metric: &metricOrderBy{MetricName: "screenPageViews"}, Desc: true}},
		Limit:    10,
	})
	if err != nil {
		return nil, err
	}

	pages := make([]TopPage, 0, len(resp.Rows))
	for i := range resp.Rows {
		row := &resp.Rows[i]
		users := metricInt(row, 1)
		engagement := metricFloat(row, 2)
		avgTime := 0
		if users > 0 {
			avgTime = int(math.Round(engagement / float64(users)))
		}
		title := dimension(row, 1)
		if title == "" {
			title = "(not set)"
		}
		pages = append(pages, TopPage{
			PagePath:       dimension(row, 0),
			PageTitle:      title,
			Pageviews:      metricInt(row, 0),
			UniqueVisitors: users,
			AvgTimeOnPage:  avgTime,
			// The API reports bounce rate as a 0..1 fraction.
			BounceRate: math.Round(metricFloat(row, 3)*1000) / 10,
		})
	}
	return pages, nil
}

func avgPerDay(total, days int) float64 {
	if days <= 0 {
		return 0
	}
	return math.Round(float64(total) / float64(days))
}

// FetchAnalyticsForProperty runs the aggregate, previous period, time series
// and top pages reports concurrently and assembles the dashboard payload.
func (c *Client) FetchAnalyticsForProperty(ctx context.Context, propertyID string, window models.Window) (*AnalyticsData, error) {
	if propertyID == "" {
		return nil, &upstreamerr.ConfigError{Var: "BLOG_GA_PROPERTY_ID", Reason: "not set"}
	}

	cacheKey := fmt.Sprintf("ga:%s:%s", propertyID, window.Key())
	if cached, ok := c.data.Get(cacheKey); ok {
		c.metrics.IncCacheHits()
		return cached, nil
	}
	c.metrics.IncCacheMisses()

	previous := window.Previous()

	var (
		cur, prev aggregates
		series    []models.TimeSeriesPoint
		topPages  []TopPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cur, err = c.fetchAggregates(gctx, propertyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		prev, err = c.fetchAggregates(gctx, propertyID, previous)
		return err
	})
	g.Go(func() error {
		var err error
		series, err = c.fetchTimeSeries(gctx, propertyID, window)
		return err
	})
	g.Go(func() error {
		var err error
		topPages, err = c.fetchTopPages(gctx, propertyID, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	days := window.Days()
	data := &AnalyticsData{
		Metrics: Metrics{
			Visitors:       models.NewMetric(float64(cur.sessions), float64(prev.sessions)),
			UniqueVisitors: models.NewMetric(float64(cur.users), float64(prev.users)),
			AvgSessionDuration: models.NewMetric(
				math.Round(cur.duration), math.Round(prev.duration)),
			AvgUsersPerDay: models.NewMetric(
				avgPerDay(cur.users, days), avgPerDay(prev.users, days)),
		},
		TimeSeries: series,
		TopPages:   topPages,
	}

	c.data.Set(cacheKey, data)
	return data, nil
}

// FetchBlogAnalytics targets the default blog property.
func (c *Client) FetchBlogAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error) {
	if c.conf.BlogPropertyID == "" {
		return nil, &upstreamerr.ConfigError{Var: "BLOG_GA_PROPERTY_ID", Reason: "not set"}
	}
	return c.FetchAnalyticsForProperty(ctx, c.conf.BlogPropertyID, window)
}
