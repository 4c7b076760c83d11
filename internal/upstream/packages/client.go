// Package packages aggregates download statistics from the npm, PyPI and
// crates.io registries into one analytics payload.
package packages

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/models"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

type Interface interface {
	FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error)
}

type Client struct {
	conf      structures.PackagesConfig
	http      *httpx.Client
	npmAPI    string
	pypiAPI   string
	cratesAPI string
	store     *cache.Store[PackageDownloads]
	data      *cache.Store[*AnalyticsData]
	// crates.io mandates one request per second; calls to it are strictly
	// sequential behind this limiter.
	cratesLimiter *rate.Limiter
	logger        providers.Logger
	metrics       providers.MetricsProviderInterface
}

func NewClient(conf *structures.Config, hc *httpx.Client, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	ttl := conf.Cache.ClientTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Client{
		conf:          conf.Packages,
		http:          hc,
		npmAPI:        "https://api.npmjs.org",
		pypiAPI:       "https://pypistats.org",
		cratesAPI:     "https://crates.io",
		store:         cache.New[PackageDownloads](ttl),
		data:          cache.New[*AnalyticsData](ttl),
		cratesLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:        logger,
		metrics:       metrics,
	}
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// tailSum sums the last n entries of the fetched series. Deliberately not
// calendar-anchored: a 3-day query range yields a 3-day "weekly" sum.
func tailSum(daily []DailyDownloads, n int) int {
	if len(daily) < n {
		n = len(daily)
	}
	sum := 0
	for _, d := range daily[len(daily)-n:] {
		sum += d.Downloads
	}
	return sum
}

// fetchSettled runs one fetch per package concurrently, collecting failures
// per package instead of aborting the batch.
func (c *Client) fetchSettled(ctx context.Context, names []string, fetch func(context.Context, string) (PackageDownloads, error)) FetchResult {
	if len(names) == 0 {
		return FetchResult{}
	}

	type outcome struct {
		pkg PackageDownloads
		err error
	}
	outcomes := make([]outcome, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			pkg, err := fetch(ctx, name)
			outcomes[i] = outcome{pkg: pkg, err: err}
		}(i, name)
	}
	wg.Wait()

	var res FetchResult
	for i, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, FetchError{Name: names[i], Error: o.err.Error()})
			continue
		}
		res.Successful = append(res.Successful, o.pkg)
	}
	return res
}

// fetchSequential is fetchSettled for rate-limited registries: one request
// at a time with the mandated spacing between calls.
func (c *Client) fetchSequential(ctx context.Context, names []string, fetch func(context.Context, string) (PackageDownloads, error)) FetchResult {
	var res FetchResult
	for _, name := range names {
		if err := c.cratesLimiter.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, FetchError{Name: name, Error: err.Error()})
			continue
		}
		pkg, err := fetch(ctx, name)
		if err != nil {
			res.Errors = append(res.Errors, FetchError{Name: name, Error: err.Error()})
			continue
		}
		res.Successful = append(res.Successful, pkg)
	}
	return res
}

func buildTimeSeries(pkgs []PackageDownloads) []SeriesPoint {
	byDate := make(map[string]*SeriesPoint)
	for _, pkg := range pkgs {
		for _, d := range pkg.DailyDownloads {
			p, ok := byDate[d.Date]
			if !ok {
				p = &SeriesPoint{Date: d.Date}
				byDate[d.Date] = p
			}
			switch pkg.Registry {
			case RegistryNpm:
				p.Npm += d.Downloads
			case RegistryPypi:
				p.Pypi += d.Downloads
			case RegistryCrates:
				p.Crates += d.Downloads
			}
		}
	}

	series := make([]SeriesPoint, 0, len(byDate))
	for _, p := range byDate {
		series = append(series, *p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

// FetchAnalytics fetches every configured package for the window. npm and
// PyPI batches run in parallel; crates follows sequentially because of its
// request spacing. It fails only when no package at all could be fetched.
func (c *Client) FetchAnalytics(ctx context.Context, window models.Window) (*AnalyticsData, error) {
	npmNames := splitNames(c.conf.Npm)
	pypiNames := splitNames(c.conf.Pypi)
	cratesNames := splitNames(c.conf.Crates)

	if len(npmNames)+len(pypiNames)+len(cratesNames) == 0 {
		return nil, &upstreamerr.ConfigError{
			Var:    "NPM_PACKAGES",
			Reason: "not set (nor PYPI_PACKAGES or CRATES_PACKAGES); no packages configured",
		}
	}

	cacheKey := "packages:" + window.Key()
	if cached, ok := c.data.Get(cacheKey); ok {
		return cached, nil
	}

	var npmRes, pypiRes FetchResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		npmRes = c.fetchSettled(ctx, npmNames, func(ctx context.Context, name string) (PackageDownloads, error) {
			return c.fetchNpmPackage(ctx, name, window)
		})
	}()
	go func() {
		defer wg.Done()
		pypiRes = c.fetchSettled(ctx, pypiNames, func(ctx context.Context, name string) (PackageDownloads, error) {
			return c.fetchPypiPackage(ctx, name, window)
		})
	}()
	wg.Wait()

	cratesRes := c.fetchSequential(ctx, cratesNames, c.fetchCratesPackage)

	all := append(append(npmRes.Successful, pypiRes.Successful...), cratesRes.Successful...)
	errs := append(append(npmRes.Errors, pypiRes.Errors...), cratesRes.Errors...)

	for _, e := range errs {
		c.logger.Warnf(providers.TypeUpstream, "package %s failed: %s", e.Name, e.Error)
	}
	if len(all) == 0 && len(errs) > 0 {
		parts := make([]string, len(errs))
		for i, e := range errs {
			parts[i] = fmt.Sprintf("%s: %s", e.Name, e.Error)
		}
		return nil, fmt.Errorf("failed to fetch any packages: %s", strings.Join(parts, ", "))
	}

	m := Metrics{PackageCount: len(all)}
	for _, pkg := range all {
		m.TotalDownloads += pkg.TotalDownloads
		m.WeeklyDownloads += pkg.WeeklyDownloads
	}

	sort.Slice(all, func(i, j int) bool { return all[i].TotalDownloads > all[j].TotalDownloads })

	// Top package by period total; the weekly field intentionally carries
	// the period total for display, matching the dashboard cards.
	var top *TopPackage
	if len(all) > 0 {
		top = &TopPackage{Name: all[0].Name, Registry: all[0].Registry, WeeklyDownloads: all[0].TotalDownloads}
	}

	data := &AnalyticsData{
		Metrics:    m,
		Packages:   all,
		TimeSeries: buildTimeSeries(all),
		TopPackage: top,
	}

	c.data.Set(cacheKey, data)
	return data, nil
}
