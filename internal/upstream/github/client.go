// Package github is the source-control host client: paginated repository
// listing, per-repo language breakdowns and the aggregate metrics payload.
package github

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"vanity/internal/cache"
	"vanity/internal/httpx"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstreamerr"
)

const (
	source      = "github"
	apiBase     = "https://api.github.com"
	perPage     = 100
	historyDays = 90
)

type Interface interface {
	FetchAnalytics(ctx context.Context) (*AnalyticsData, error)
}

type Client struct {
	conf    structures.GitHubConfig
	http    *httpx.Client
	api     string
	langs   *cache.Store[[]LanguageBreakdown]
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
		conf:    conf.GitHub,
		http:    hc,
		api:     apiBase,
		langs:   cache.New[[]LanguageBreakdown](ttl),
		data:    cache.New[*AnalyticsData](ttl),
		logger:  logger,
		metrics: metrics,
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": "vanity-mirror",
	}
	if c.conf.Token != "" {
		h["Authorization"] = "Bearer " + c.conf.Token
	}
	return h
}

// get wraps GetJSON with GitHub's header-based rate-limit detection: a 403
// with a drained remaining quota becomes a RateLimitError carrying the
// advertised reset time.
func (c *Client) get(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range c.headers() {
		req.Header.Set(k, v)
	}
	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	c.metrics.ObserveUpstreamDuration(source, time.Since(start))
	if err != nil {
		c.metrics.IncUpstreamRequests(source, "error")
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		c.metrics.IncUpstreamRequests(source, "rate_limited")
		var resetAt time.Time
		if v, convErr := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); convErr == nil {
			resetAt = time.Unix(v, 0)
		}
		return resp.StatusCode, &upstreamerr.RateLimitError{Source: source, ResetAt: resetAt}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.IncUpstreamRequests(source, "error")
		return resp.StatusCode, nil
	}
	c.metrics.IncUpstreamRequests(source, "ok")
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

// fetchRepoLanguages converts upstream byte counts into a percentage
// breakdown. Failures degrade to an empty breakdown; a missing language
// chart never blocks the repository listing.
func (c *Client) fetchRepoLanguages(ctx context.Context, fullName string) []LanguageBreakdown {
	if cached, ok := c.langs.Get(fullName); ok {
		return cached
	}

	var bytesByLang map[string]int64
	status, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/languages", c.api, fullName), &bytesByLang)
	if err != nil || status < 200 || status >= 300 {
		return []LanguageBreakdown{}
	}

	var total int64
	for _, b := range bytesByLang {
		total += b
	}
	if total == 0 {
		return []LanguageBreakdown{}
	}

	langs := make([]LanguageBreakdown, 0, len(bytesByLang))
	for lang, b := range bytesByLang {
		langs = append(langs, LanguageBreakdown{
			Language:   lang,
			Bytes:      b,
			Percentage: math.Round(float64(b)/float64(total)*1000) / 10,
		})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Bytes > langs[j].Bytes })

	c.langs.Set(fullName, langs)
	return langs
}

func (c *Client) fetchUserRepositories(ctx context.Context, username string) ([]Repository, error) {
	var repos []Repository
	for page := 1; ; page++ {
		// The authenticated endpoint includes private repos; the public one
		// is the unauthenticated fallback.
		var url string
		if c.conf.Token != "" {
			url = fmt.Sprintf("%s/user/repos?per_page=%d&page=%d&affiliation=owner&visibility=all&sort=updated", c.api, perPage, page)
		} else {
			url = fmt.Sprintf("%s/users/%s/repos?per_page=%d&page=%d&type=owner&sort=updated", c.api, username, perPage, page)
		}

		var batch []apiRepo
		status, err := c.get(ctx, url, &batch)
		if err != nil {
			return nil, err
		}
		switch {
		case status == http.StatusNotFound:
			return nil, &upstreamerr.NotFoundError{Source: source, Entity: "user '" + username + "'"}
		case status == http.StatusUnauthorized:
			return nil, &upstreamerr.AuthError{Source: source}
		case status < 200 || status >= 300:
			return nil, &upstreamerr.UpstreamError{Source: source, Status: status}
		}

		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			repo := Repository{
				ID:         r.ID,
				Name:       r.Name,
				FullName:   r.FullName,
				URL:        r.HTMLURL,
				Stars:      r.Stars,
				Forks:      r.Forks,
				Watchers:   r.Watchers,
				Languages:  []LanguageBreakdown{},
				IsArchived: r.Archived,
				IsFork:     r.Fork,
				IsPrivate:  r.Private,
				CreatedAt:  r.CreatedAt,
				UpdatedAt:  r.UpdatedAt,
				PushedAt:   r.PushedAt,
			}
			if r.Description != nil {
				repo.Description = *r.Description
			}
			if r.Language != nil {
				repo.Language = *r.Language
			}
			repos = append(repos, repo)
		}
		if len(batch) < perPage {
			break
		}
	}

	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Stars != repos[j].Stars {
			return repos[i].Stars > repos[j].Stars
		}
		return repos[i].UpdatedAt > repos[j].UpdatedAt
	})

	// Language breakdowns for all repos concurrently; each failure is
	// isolated to its own repo.
	var wg sync.WaitGroup
	for i := range repos {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repos[i].Languages = c.fetchRepoLanguages(ctx, repos[i].FullName)
		}(i)
	}
	wg.Wait()

	return repos, nil
}

// placeholderStarHistory puts the current star total on the most recent day
// and zero everywhere else. Real star-event history is not fetched, so this
// series is a placeholder shape for the sparkline, not a true history.
func placeholderStarHistory(repos []Repository, now time.Time) []StarHistoryPoint {
	totalStars := 0
	for _, r := range repos {
		totalStars += r.Stars
	}

	history := make([]StarHistoryPoint, 0, historyDays)
	for i := historyDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		point := StarHistoryPoint{Date: day.Format("2006-01-02")}
		if i == 0 {
			point.TotalStars = totalStars
		}
		history = append(history, point)
	}
	return history
}

func (c *Client) FetchAnalytics(ctx context.Context) (*AnalyticsData, error) {
	if c.conf.Username == "" {
		return nil, &upstreamerr.ConfigError{Var: "GITHUB_USERNAME"}
	}

	cacheKey := "analytics:" + c.conf.Username
	if cached, ok := c.data.Get(cacheKey); ok {
		return cached, nil
	}

	repos, err := c.fetchUserRepositories(ctx, c.conf.Username)
	if err != nil {
		return nil, err
	}

	m := Metrics{RepoCount: len(repos)}
	for _, r := range repos {
		m.TotalStars += r.Stars
		m.TotalForks += r.Forks
		m.TotalWatchers += r.Watchers
	}

	data := &AnalyticsData{
		Metrics:      m,
		Repositories: repos,
		StarHistory:  placeholderStarHistory(repos, time.Now()),
	}

	c.data.Set(cacheKey, data)
	return data, nil
}
