// Package posthog reads product analytics from the PostHog query API using
// TrendsQuery for counts and HogQL for the ad hoc aggregates.
package posthog

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/models"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

const (
	source      = "posthog"
	defaultHost = "https://us.posthog.com"
	pageview    = "$pageview"
)

type Interface interface {
	FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error)
}

type Client struct {
	conf    structures.PostHogConfig
	http    *httpx.Client
	data    *cache.Store[*AnalyticsData]
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
	now     func() time.Time
}

func NewClient(conf *structures.Config, hc *httpx.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	ttl := conf.Cache.ClientTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:    conf.PostHog,
		http:    hc,
		data:    cache.New[*AnalyticsData](ttl),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (c *Client) host() string {
	if c.conf.Host != "" {
		return c.conf.Host
	}
	return defaultHost
}

func (c *Client) query(ctx context.Context, q any, out any) error {
	url := fmt.Sprintf("%s/api/projects/%s/query/", c.host(), c.conf.ProjectID)
	headers := map[string]string{"Authorization": "Bearer " + c.conf.APIKey}

	status, err := c.http.PostJSON(ctx, url, headers, queryEnvelope{Query: q}, out)
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return err
	}
	if status < 200 || status >= 300 {
		c.metrics.IncUpstreamRequests(source, "error")
		switch status {
		case http.StatusUnauthorized:
			return &upstreamerr.AuthError{Source: source}
		case http.StatusNotFound:
			return &upstreamerr.NotFoundError{Source: source, Entity: "project '" + c.conf.ProjectID + "'"}
		case http.StatusTooManyRequests:
			return &upstreamerr.RateLimitError{Source: source}
		default:
			return &upstreamerr.UpstreamError{Source: source, Status: status}
		}
	}
	c.metrics.IncUpstreamRequests(source, "ok")
	return nil
}

// aggregateValue reads the single number out of a BoldNumber trends response,
// summing the data points when no aggregated value is present.
func aggregateValue(resp *queryResponse) int {
	rows := resp.rows()
	if len(rows) == 0 {
		return 0
	}
	if rows[0].AggregatedValue != nil {
		return int(math.Round(*rows[0].AggregatedValue))
	}
	sum := 0.0
	for _, v := range rows[0].Data {
		sum += v
	}
	return int(math.Round(sum))
}

// fetchAggregate runs one BoldNumber TrendsQuery. A nil event counts every
// event in the project.
func (c *Client) fetchAggregate(ctx context.Context, event *string, w models.Window, mathType string) (int, error) {
	var resp queryResponse
	err := c.query(ctx, trendsQuery{
		Kind:         "TrendsQuery",
		DateRange:    trendsDateRange{DateFrom: w.StartDate(), DateTo: w.EndDate()},
		Series:       []eventsNode{{Kind: "EventsNode", Event: event, Math: mathType}},
		TrendsFilter: &trendsFilter{Display: "BoldNumber"},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return aggregateValue(&resp), nil
}

func (c *Client) fetchTrends(ctx context.Context, event string, w models.Window, mathType string) (*queryResponse, error) {
	var resp queryResponse
	err := c.query(ctx, trendsQuery{
		Kind:      "TrendsQuery",
		DateRange: trendsDateRange{DateFrom: w.StartDate(), DateTo: w.EndDate()},
		Series:    []eventsNode{{Kind: "EventsNode", Event: &event, Math: mathType}},
		Interval:  "day",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// fetchSessionDuration asks HogQL for the mean session duration. The metric
// is optional; any failure degrades to zero with a warning.
func (c *Client) fetchSessionDuration(ctx context.Context, w models.Window) int {
	q := fmt.Sprintf(`
		SELECT avg(session.$session_duration) AS avg_duration
		FROM events
		WHERE
			event = '$pageview'
			AND timestamp >= toDateTime('%s 00:00:00')
			AND timestamp <= toDateTime('%s 23:59:59')
	`, w.StartDate(), w.EndDate())

	var resp hogQLResponse
	if err := c.query(ctx, hogQLQuery{Kind: "HogQLQuery", Query: q}, &resp); err != nil {
		c.logger.Warnf(providers.TypeUpstream, "posthog session duration query failed: %s", err.Error())
		return 0
	}
	if len(resp.Results) == 0 || len(resp.Results[0]) == 0 {
		return 0
	}
	if v, ok := resp.Results[0][0].(float64); ok {
		return int(math.Round(v))
	}
	return 0
}

// fetchActiveUsers computes DAU, WAU and MAU relative to today regardless of
// the requested window.
func (c *Client) fetchActiveUsers(ctx context.Context) (ActiveUsers, error) {
	today := c.now().UTC()

	windowEnding := func(daysBack int) models.Window {
		return models.Window{Start: today.AddDate(0, 0, -daysBack), End: today}
	}

	ev := pageview
	var au ActiveUsers
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, windowEnding(1), "dau")
		au.DAU = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, windowEnding(7), "dau")
		au.WAU = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, windowEnding(30), "dau")
		au.MAU = v
		return err
	})
	if err := g.Wait(); err != nil {
		return ActiveUsers{}, err
	}
	return au, nil
}

// formatDay turns "YYYY-MM-DD" (or a full timestamp) into MM/DD so the chart
// labels line up with the other traffic sources.
func formatDay(day string) string {
	if i := strings.IndexByte(day, 'T'); i >= 0 {
		day = day[:i]
	}
	parts := strings.Split(day, "-")
	if len(parts) == 3 {
		return parts[1] + "/" + parts[2]
	}
	return day
}

func (c *Client) fetchTimeSeries(ctx context.Context, w models.Window) ([]models.TimeSeriesPoint, error) {
	var total, unique *queryResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = c.fetchTrends(gctx, pageview, w, "total")
		return err
	})
	g.Go(func() error {
		var err error
		unique, err = c.fetchTrends(gctx, pageview, w, "dau")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalRows := total.rows()
	if len(totalRows) == 0 {
		return []models.TimeSeriesPoint{}, nil
	}
	days := totalRows[0].Days
	if len(days) == 0 {
		days = totalRows[0].Labels
	}
	var uniqueData []float64
	if rows := unique.rows(); len(rows) > 0 {
		uniqueData = rows[0].Data
	}

	series := make([]models.TimeSeriesPoint, 0, len(days))
	for i, day := range days {
		p := models.TimeSeriesPoint{Date: formatDay(day)}
		if i < len(totalRows[0].Data) {
			p.Visitors = int(totalRows[0].Data[i])
		}
		if i < len(uniqueData) {
			p.UniqueVisitors = int(uniqueData[i])
		}
		series = append(series, p)
	}
	return series, nil
}

// fetchTopEvents lists the busiest custom events. PostHog internal events
// (the $-prefixed ones) are filtered out client-side, so the query over-fetches
// to keep the list full. Optional; failures degrade to an empty list.
func (c *Client) fetchTopEvents(ctx context.Context, w models.Window, limit int) []TopEvent {
	q := fmt.Sprintf(`
		SELECT
			event,
			count() AS count,
			count(DISTINCT person_id) AS unique_users
		FROM events
		WHERE
			timestamp >= toDateTime('%s 00:00:00')
			AND timestamp <= toDateTime('%s 23:59:59')
		GROUP BY event
		ORDER BY count DESC
		LIMIT %d
	`, w.StartDate(), w.EndDate(), limit*2)

	var resp hogQLResponse
	if err := c.query(ctx, hogQLQuery{Kind: "HogQLQuery", Query: q}, &resp); err != nil {
		c.logger.Warnf(providers.TypeUpstream, "posthog top events query failed: %s", err.Error())
		return []TopEvent{}
	}

	events := make([]TopEvent, 0, limit)
	for _, row := range resp.Results {
		if len(row) < 3 {
			continue
		}
		name, _ := row[0].(string)
		if name == "" || strings.HasPrefix(name, "$") {
			continue
		}
		events = append(events, TopEvent{
			EventName:   name,
			Count:       asInt(row[1]),
			UniqueUsers: asInt(row[2]),
		})
		if len(events) == limit {
			break
		}
	}
	return events
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// FetchAnalytics gathers visitor counts, total events, session duration,
// active user figures, the daily series and the top event list for the
// window, with the matching previous period for trends. Session duration and
// top events are optional and degrade silently; everything else fails the
// request.
func (c *Client) FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error) {
	if c.conf.APIKey == "" {
		return nil, &upstreamerr.ConfigError{Var: "POSTHOG_API_KEY", Reason: "not set"}
	}
	if c.conf.ProjectID == "" {
		return nil, &upstreamerr.ConfigError{Var: "POSTHOG_PROJECT_ID", Reason: "not set"}
	}

	cacheKey := "posthog:" + window.Key()
	if cached, ok := c.data.Get(cacheKey); ok {
		c.metrics.IncCacheHits()
		return cached, nil
	}
	c.metrics.IncCacheMisses()

	previous := window.Previous()
	ev := pageview

	var (
		curVisitors, prevVisitors int
		curUnique, prevUnique     int
		curEvents, prevEvents     int
		curDuration, prevDuration int
		activeUsers               ActiveUsers
		series                    []models.TimeSeriesPoint
		topEvents                 []TopEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, window, "total")
		curVisitors = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, previous, "total")
		prevVisitors = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, window, "dau")
		curUnique = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, &ev, previous, "dau")
		prevUnique = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, nil, window, "total")
		curEvents = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetchAggregate(gctx, nil, previous, "total")
		prevEvents = v
		return err
	})
	g.Go(func() error {
		curDuration = c.fetchSessionDuration(gctx, window)
		return nil
	})
	g.Go(func() error {
		prevDuration = c.fetchSessionDuration(gctx, previous)
		return nil
	})
	g.Go(func() error {
		var err error
		activeUsers, err = c.fetchActiveUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		series, err = c.fetchTimeSeries(gctx, window)
		return err
	})
	g.Go(func() error {
		topEvents = c.fetchTopEvents(gctx, window, 10)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &AnalyticsData{
		Metrics: Metrics{
			Visitors:           models.NewMetric(float64(curVisitors), float64(prevVisitors)),
			UniqueVisitors:     models.NewMetric(float64(curUnique), float64(prevUnique)),
			TotalEvents:        models.NewMetric(float64(curEvents), float64(prevEvents)),
			AvgSessionDuration: models.NewMetric(float64(curDuration), float64(prevDuration)),
		},
		ActiveUsers: activeUsers,
		TimeSeries:  series,
		TopEvents:   topEvents,
	}

	c.data.Set(cacheKey, data)
	return data, nil
}
