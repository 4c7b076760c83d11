// Package controllers is the HTTP boundary: rate limiting, window
// validation, response caching and the success/error envelope around the
// upstream aggregation calls.
package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"vanity/internal/models"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstream/appstore"
	"vanity/internal/upstream/ganalytics"
	"vanity/internal/upstream/github"
	"vanity/internal/upstream/packages"
	"vanity/internal/upstream/posthog"
	"vanity/internal/upstream/youtube"
	"vanity/internal/upstreamerr"
)

// envelope is the uniform response shape of every /api route.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AnalyticsController struct {
	conf     *structures.Config
	github   github.Interface
	ga       ganalytics.Interface
	posthog  posthog.Interface
	appstore appstore.Interface
	youtube  youtube.Interface
	packages packages.Interface
	cache    providers.CacheProviderInterface
	limiter  providers.RateLimiterInterface
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
	now      func() time.Time
}

func NewAnalyticsController(
	conf *structures.Config,
	gh github.Interface,
	ga ganalytics.Interface,
	ph posthog.Interface,
	as appstore.Interface,
	yt youtube.Interface,
	pkg packages.Interface,
	cache providers.CacheProviderInterface,
	limiter providers.RateLimiterInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *AnalyticsController {
	return &AnalyticsController{
		conf:     conf,
		github:   gh,
		ga:       ga,
		posthog:  ph,
		appstore: as,
		youtube:  yt,
		packages: pkg,
		cache:    cache,
		limiter:  limiter,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (c *AnalyticsController) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// checkRateLimit enforces the per-client request budget. It writes the 429
// response itself and reports whether the request may proceed.
func (c *AnalyticsController) checkRateLimit(w http.ResponseWriter, r *http.Request) bool {
	res := c.limiter.Check(providers.ClientKey(r))
	if res.Allowed {
		return true
	}
	c.metrics.IncRateLimited()
	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(c.now())))
	c.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	return false
}

// queryWindow reads startDate/endDate, defaulting to the last 30 days when
// both are absent.
func (c *AnalyticsController) queryWindow(r *http.Request) (models.Window, error) {
	start := r.URL.Query().Get("startDate")
	end := r.URL.Query().Get("endDate")
	if start == "" && end == "" {
		today := c.now().UTC().Truncate(24 * time.Hour)
		return models.Window{Start: today.AddDate(0, 0, -29), End: today}, nil
	}
	return models.ParseWindow(start, end)
}

func (c *AnalyticsController) fail(w http.ResponseWriter, route string, err error) {
	var rateErr *upstreamerr.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfter(c.now())))
	}
	c.logger.Errorf(providers.TypeHTTP, "%s failed: %s", route, err.Error())
	c.writeError(w, upstreamerr.StatusFor(err), upstreamerr.Message(err))
}

// serveCached writes a cached success payload and reports whether it did.
func (c *AnalyticsController) serveCached(w http.ResponseWriter, cacheKey string) bool {
	cached, ok := c.cache.Get(cacheKey)
	if !ok {
		c.metrics.IncCacheMisses()
		return false
	}
	c.metrics.IncCacheHits()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cached)
	return true
}

func (c *AnalyticsController) writeSuccess(w http.ResponseWriter, cacheKey string, data any) {
	body, err := json.Marshal(envelope{Success: true, Data: data})
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "Failed to fetch analytics data")
		return
	}
	c.cache.Set(cacheKey, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// serveFromCacheOrCompute answers from the response cache when possible and
// otherwise computes, caches and writes a success envelope. Only successful
// payloads are cached.
func (c *AnalyticsController) serveFromCacheOrCompute(w http.ResponseWriter, route, cacheKey string, compute func() (any, error)) {
	if c.serveCached(w, cacheKey) {
		return
	}
	data, err := compute()
	if err != nil {
		c.fail(w, route, err)
		return
	}
	c.writeSuccess(w, cacheKey, data)
}

// GithubAnalytics serves account-wide repository metrics. No query window
// applies; GitHub numbers are lifetime totals.
func (c *AnalyticsController) GithubAnalytics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.checkRateLimit(w, r) {
			return
		}
		c.serveFromCacheOrCompute(w, "/api/github/analytics", "resp:github", func() (any, error) {
			return c.github.FetchAnalytics(r.Context())
		})
	})
}

func (c *AnalyticsController) windowed(route string, compute func(ctx context.Context, w models.Window) (any, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.checkRateLimit(w, r) {
			return
		}
		window, err := c.queryWindow(r)
		if err != nil {
			c.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cacheKey := "resp:" + route + ":" + window.Key()
		c.serveFromCacheOrCompute(w, route, cacheKey, func() (any, error) {
			return compute(r.Context(), window)
		})
	})
}

func (c *AnalyticsController) BlogAnalytics() http.Handler {
	return c.windowed("/api/blog/analytics", func(ctx context.Context, w models.Window) (any, error) {
		return c.ga.FetchBlogAnalytics(ctx, w)
	})
}

// SiteAnalytics serves the marketing site property. A missing property id
// means the feature is not enabled on this deployment, which is 503 rather
// than an upstream failure.
func (c *AnalyticsController) SiteAnalytics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.checkRateLimit(w, r) {
			return
		}
		propertyID := c.conf.Analytics.SitePropertyID
		if propertyID == "" {
			c.writeError(w, http.StatusServiceUnavailable, "Site analytics not configured")
			return
		}
		window, err := c.queryWindow(r)
		if err != nil {
			c.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cacheKey := "resp:/api/site/analytics:" + window.Key()
		c.serveFromCacheOrCompute(w, "/api/site/analytics", cacheKey, func() (any, error) {
			return c.ga.FetchAnalyticsForProperty(r.Context(), propertyID, window)
		})
	})
}

func (c *AnalyticsController) ProductAnalytics() http.Handler {
	return c.windowed("/api/product/analytics", func(ctx context.Context, w models.Window) (any, error) {
		return c.posthog.FetchAnalytics(ctx, w)
	})
}

func (c *AnalyticsController) PackagesAnalytics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.checkRateLimit(w, r) {
			return
		}
		window, err := c.queryWindow(r)
		if err != nil {
			c.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cacheKey := "resp:/api/packages/analytics:" + window.Key()
		if c.serveCached(w, cacheKey) {
			return
		}

		data, err := c.packages.FetchAnalytics(r.Context(), window)
		if err != nil {
			status := upstreamerr.StatusFor(err)
			msg := upstreamerr.Message(err)
			// The all-packages-failed error already enumerates per-package
			// failures in a sanitized form; surface it verbatim.
			if status == http.StatusInternalServerError && msg == "Failed to fetch analytics data" {
				msg = err.Error()
			}
			c.logger.Errorf(providers.TypeHTTP, "/api/packages/analytics failed: %s", err.Error())
			c.writeError(w, status, msg)
			return
		}
		c.writeSuccess(w, cacheKey, data)
	})
}

func (c *AnalyticsController) YoutubeAnalytics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.checkRateLimit(w, r) {
			return
		}
		c.serveFromCacheOrCompute(w, "/api/youtube/analytics", "resp:youtube", func() (any, error) {
			return c.youtube.FetchAnalytics(r.Context())
		})
	})
}

// appsPayload combines the docs site traffic with App Store performance.
// Either side degrades to null when its source is unconfigured or failing.
type appsPayload struct {
	Docs     *ganalytics.AnalyticsData `json:"docs"`
	AppStore *appstore.AnalyticsData   `json:"appStore"`
}

func (c *AnalyticsController) AppsAnalytics() http.Handler {
	return c.windowed("/api/apps/analytics", func(ctx context.Context, window models.Window) (any, error) {
		docsConfigured := c.conf.Analytics.DocsPropertyID != "" && c.conf.Analytics.ServiceAccountKey != ""
		storeConfigured := c.appstore.Configured()
		if !docsConfigured && !storeConfigured {
			return nil, &upstreamerr.ConfigError{Var: "DOCS_GA_PROPERTY_ID", Reason: "not set (nor App Store Connect credentials); no app analytics sources configured"}
		}

		var payload appsPayload
		var wg sync.WaitGroup
		if docsConfigured {
			wg.Add(1)
			go func() {
				defer wg.Done()
				data, err := c.ga.FetchAnalyticsForProperty(ctx, c.conf.Analytics.DocsPropertyID, window)
				if err != nil {
					c.logger.Warnf(providers.TypeUpstream, "docs analytics degraded: %s", err.Error())
					return
				}
				payload.Docs = data
			}()
		}
		if storeConfigured {
			wg.Add(1)
			go func() {
				defer wg.Done()
				data, err := c.appstore.FetchAnalytics(ctx, window)
				if err != nil {
					c.logger.Warnf(providers.TypeUpstream, "app store analytics degraded: %s", err.Error())
					return
				}
				payload.AppStore = data
			}()
		}
		wg.Wait()
		return payload, nil
	})
}
