// Package appstore reads sales reports and customer reviews from the App
// Store Connect API. Authentication uses short-lived ES256 tokens; sales
// reports arrive as gzipped TSV files, one per report date.
package appstore

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/models"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

const (
	source  = "appstore"
	apiBase = "https://api.appstoreconnect.apple.com/v1"
)

// appProductTypes are the product type identifiers that count as app
// downloads. Everything else (in-app purchases, subscriptions, updates) is
// excluded from download totals.
//
//	1  paid iOS        1F  free iOS
//	1T paid universal  1TF free universal
//	7  paid Mac        7F  free Mac
//	F1 free first-time F3  free re-download
var appProductTypes = map[string]bool{
	"1": true, "1F": true, "1T": true, "1TF": true,
	"7": true, "7F": true, "F1": true, "F3": true,
}

type Interface interface {
	FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error)
	Configured() bool
}

type Client struct {
	conf    structures.AppStoreConfig
	http    *httpx.Client
	api     string
	tokens  *tokenSource
	sales   *cache.Store[SalesData]
	reviews *cache.Store[*ReviewData]
	data    *cache.Store[*AnalyticsData]
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewClient(conf *structures.Config, hc *httpx.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	ttl := conf.Cache.ClientTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:    conf.AppStore,
		http:    hc,
		api:     apiBase,
		tokens:  newTokenSource(conf.AppStore.KeyID, conf.AppStore.IssuerID, conf.AppStore.PrivateKey, time.Now),
		sales:   cache.New[SalesData](ttl),
		reviews: cache.New[*ReviewData](ttl),
		data:    cache.New[*AnalyticsData](ttl),
		logger:  logger,
		metrics: metrics,
	}
}

// Configured reports whether every credential needed to talk to the API is
// present.
func (c *Client) Configured() bool {
	return c.conf.KeyID != "" && c.conf.IssuerID != "" && c.conf.PrivateKey != "" &&
		c.conf.AppID != "" && c.conf.VendorNumber != ""
}

func (c *Client) checkConfig() error {
	for _, v := range []struct{ name, val string }{
		{"APP_STORE_CONNECT_KEY_ID", c.conf.KeyID},
		{"APP_STORE_CONNECT_ISSUER_ID", c.conf.IssuerID},
		{"APP_STORE_CONNECT_PRIVATE_KEY", c.conf.PrivateKey},
		{"APP_STORE_CONNECT_APP_ID", c.conf.AppID},
		{"APP_STORE_CONNECT_VENDOR_NUMBER", c.conf.VendorNumber},
	} {
		if v.val == "" {
			return &upstreamerr.ConfigError{Var: v.name, Reason: "not set"}
		}
	}
	return nil
}

// parseSalesTSV decodes a tab-separated report. Rows whose column count does
// not match the header are skipped rather than failing the whole report.
func parseSalesTSV(tsv string) []SalesRow {
	lines := strings.Split(strings.TrimSpace(tsv), "\n")
	if len(lines) < 2 {
		return nil
	}
	headers := strings.Split(lines[0], "\t")
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[h] = i
	}
	col := func(values []string, name string) string {
		if i, ok := idx[name]; ok && i < len(values) {
			return values[i]
		}
		return ""
	}

	rows := make([]SalesRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := strings.Split(line, "\t")
		if len(values) != len(headers) {
			continue
		}
		units, _ := strconv.Atoi(col(values, "Units"))
		proceeds, _ := strconv.ParseFloat(col(values, "Developer Proceeds"), 64)
		rows = append(rows, SalesRow{
			SKU:                   col(values, "SKU"),
			Title:                 col(values, "Title"),
			Version:               col(values, "Version"),
			ProductTypeIdentifier: col(values, "Product Type Identifier"),
			Units:                 units,
			DeveloperProceeds:     proceeds,
			BeginDate:             col(values, "Begin Date"),
			EndDate:               col(values, "End Date"),
			CountryCode:           col(values, "Country Code"),
		})
	}
	return rows
}

// normalizeDate accepts the report's MM/DD/YYYY dates as well as ISO dates
// and returns YYYY-MM-DD.
func normalizeDate(s string) string {
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

// weekEndingSunday returns the Sunday that closes the week containing d,
// matching how Apple dates its weekly reports.
func weekEndingSunday(d time.Time) time.Time {
	if wd := int(d.Weekday()); wd != 0 {
		return d.AddDate(0, 0, 7-wd)
	}
	return d
}

// reportDates picks the report dates covering the window. Short windows use
// daily reports; from 30 days up, weekly reports keep the request count down.
func reportDates(w models.Window) (dates []string, frequency string) {
	span := int(w.End.Sub(w.Start).Hours() / 24)
	if span >= 30 {
		for d := weekEndingSunday(w.Start); !d.After(weekEndingSunday(w.End)); d = d.AddDate(0, 0, 7) {
			dates = append(dates, d.Format("2006-01-02"))
		}
		return dates, "WEEKLY"
	}
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, "DAILY"
}

// fetchReport downloads and parses one gzipped report. Missing reports (404,
// common for dates with no sales or not yet published) and transient failures
// yield an empty slice.
func (c *Client) fetchReport(ctx context.Context, bearer, frequency, date string) []SalesRow {
	params := url.Values{
		"filter[frequency]":     {frequency},
		"filter[reportDate]":    {date},
		"filter[reportSubType]": {"SUMMARY"},
		"filter[reportType]":    {"SALES"},
		"filter[vendorNumber]":  {c.conf.VendorNumber},
	}
	req, err := http.NewRequest(http.MethodGet, c.api+"/salesReports?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/a-gzip")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode != http.StatusNotFound {
			c.metrics.IncUpstreamRequests(source, "error")
			c.logger.Warnf(providers.TypeUpstream, "sales report %s (%s) returned %d", date, frequency, resp.StatusCode)
		}
		return nil
	}
	c.metrics.IncUpstreamRequests(source, "ok")

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		c.logger.Warnf(providers.TypeUpstream, "sales report %s is not valid gzip: %s", date, err.Error())
		return nil
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		c.logger.Warnf(providers.TypeUpstream, "sales report %s read failed: %s", date, err.Error())
		return nil
	}
	return parseSalesTSV(string(raw))
}

// FetchSalesReports aggregates app download units and proceeds for the
// window. All report dates are fetched in parallel with a shared token.
func (c *Client) FetchSalesReports(ctx context.Context, window models.Window) (SalesData, error) {
	cacheKey := "sales:" + window.Key()
	if cached, ok := c.sales.Get(cacheKey); ok {
		return cached, nil
	}

	bearer, err := c.tokens.bearer()
	if err != nil {
		return SalesData{}, err
	}

	dates, frequency := reportDates(window)
	results := make([][]SalesRow, len(dates))
	var wg sync.WaitGroup
	for i, date := range dates {
		wg.Add(1)
		go func(i int, date string) {
			defer wg.Done()
			results[i] = c.fetchReport(ctx, bearer, frequency, date)
		}(i, date)
	}
	wg.Wait()

	weekStart := window.End.AddDate(0, 0, -7)
	byDate := make(map[string]*DailySales)
	var data SalesData
	for _, rows := range results {
		for _, row := range rows {
			if !appProductTypes[row.ProductTypeIdentifier] {
				continue
			}
			data.TotalUnits += row.Units
			data.TotalProceeds += row.DeveloperProceeds

			date := normalizeDate(row.BeginDate)
			d, ok := byDate[date]
			if !ok {
				d = &DailySales{Date: date}
				byDate[date] = d
			}
			d.Units += row.Units
			d.Proceeds += row.DeveloperProceeds

			if t, err := time.Parse("2006-01-02", date); err == nil && !t.Before(weekStart) {
				data.WeeklyUnits += row.Units
				data.WeeklyProceeds += row.DeveloperProceeds
			}
		}
	}

	data.ReportsByDate = make([]DailySales, 0, len(byDate))
	for _, d := range byDate {
		data.ReportsByDate = append(data.ReportsByDate, *d)
	}
	sort.Slice(data.ReportsByDate, func(i, j int) bool {
		return data.ReportsByDate[i].Date < data.ReportsByDate[j].Date
	})

	c.sales.Set(cacheKey, data)
	return data, nil
}

// FetchCustomerReviews loads the 50 most recent reviews and summarizes them.
func (c *Client) FetchCustomerReviews(ctx context.Context) (*ReviewData, error) {
	cacheKey := "reviews"
	if cached, ok := c.reviews.Get(cacheKey); ok {
		return cached, nil
	}

	bearer, err := c.tokens.bearer()
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/apps/%s/customerReviews?sort=-createdDate&limit=50", c.api, c.conf.AppID)
	headers := map[string]string{"Authorization": "Bearer " + bearer}

	var resp reviewsResponse
	status, err := c.http.GetJSON(ctx, reqURL, headers, &resp)
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
			return nil, &upstreamerr.NotFoundError{Source: source, Entity: "app '" + c.conf.AppID + "'"}
		case http.StatusTooManyRequests:
			return nil, &upstreamerr.RateLimitError{Source: source}
		default:
			return nil, &upstreamerr.UpstreamError{Source: source, Status: status}
		}
	}
	c.metrics.IncUpstreamRequests(source, "ok")

	reviews := make([]CustomerReview, 0, len(resp.Data))
	distribution := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	totalRating := 0
	for _, r := range resp.Data {
		review := CustomerReview{
			ID:               r.ID,
			Rating:           r.Attributes.Rating,
			Title:            r.Attributes.Title,
			Body:             r.Attributes.Body,
			ReviewerNickname: r.Attributes.ReviewerNickname,
			CreatedDate:      r.Attributes.CreatedDate,
			Territory:        r.Attributes.Territory,
		}
		reviews = append(reviews, review)
		if review.Rating >= 1 && review.Rating <= 5 {
			distribution[review.Rating]++
			totalRating += review.Rating
		}
	}

	avg := 0.0
	if len(reviews) > 0 {
		avg = math.Round(float64(totalRating)/float64(len(reviews))*10) / 10
	}
	recent := reviews
	if len(recent) > 10 {
		recent = recent[:10]
	}

	data := &ReviewData{
		AverageRating:      avg,
		TotalReviews:       len(reviews),
		RecentReviews:      recent,
		RatingDistribution: distribution,
	}

	c.reviews.Set(cacheKey, data)
	return data, nil
}

func formatTrendDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) == 3 {
		return parts[1] + "/" + parts[2]
	}
	return date
}

// FetchAnalytics combines current sales, previous period sales for trends and
// the review summary.
func (c *Client) FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	cacheKey := "analytics:" + window.Key()
	if cached, ok := c.data.Get(cacheKey); ok {
		c.metrics.IncCacheHits()
		return cached, nil
	}
	c.metrics.IncCacheMisses()

	previous := window.Previous()

	var (
		cur, prev SalesData
		reviews   *ReviewData
	)
	var wg sync.WaitGroup
	var curErr, prevErr, revErr error
	wg.Add(3)
	go func() { defer wg.Done(); cur, curErr = c.FetchSalesReports(ctx, window) }()
	go func() { defer wg.Done(); prev, prevErr = c.FetchSalesReports(ctx, previous) }()
	go func() { defer wg.Done(); reviews, revErr = c.FetchCustomerReviews(ctx) }()
	wg.Wait()
	for _, err := range []error{curErr, prevErr, revErr} {
		if err != nil {
			return nil, err
		}
	}

	trends := make([]DownloadTrendPoint, 0, len(cur.ReportsByDate))
	for _, d := range cur.ReportsByDate {
		trends = append(trends, DownloadTrendPoint{
			Date:      formatTrendDate(d.Date),
			Downloads: d.Units,
			Revenue:   d.Proceeds,
		})
	}

	data := &AnalyticsData{
		Sales: SalesMetrics{
			TotalDownloads:  models.NewMetric(float64(cur.TotalUnits), float64(prev.TotalUnits)),
			WeeklyDownloads: models.NewMetric(float64(cur.WeeklyUnits), float64(prev.WeeklyUnits)),
			TotalRevenue:    models.NewMetric(cur.TotalProceeds, prev.TotalProceeds),
			WeeklyRevenue:   models.NewMetric(cur.WeeklyProceeds, prev.WeeklyProceeds),
		},
		Reviews: ReviewSummary{
			AverageRating: reviews.AverageRating,
			TotalReviews:  reviews.TotalReviews,
			RecentReviews: reviews.RecentReviews,
		},
		DownloadTrends: trends,
	}

	c.data.Set(cacheKey, data)
	return data, nil
}
