package packages

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"vanity/internal/upstreamerr"
)

type cratesResponse struct {
	Crate struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Downloads       int    `json:"downloads"`
		RecentDownloads int    `json:"recent_downloads"`
		CreatedAt       string `json:"created_at"`
	} `json:"crate"`
}

// fetchCratesPackage reads the crate summary. crates.io exposes no daily
// breakdown, only the lifetime total and a 90-day recent count; weekly and
// monthly figures are estimated from the recent daily average. The cache key
// carries no dates because the endpoint cannot filter by them.
func (c *Client) fetchCratesPackage(ctx context.Context, name string) (PackageDownloads, error) {
	cacheKey := "crates:" + name
	if cached, ok := c.store.Get(cacheKey); ok {
		return cached, nil
	}

	reqURL := c.cratesAPI + "/api/v1/crates/" + name
	headers := map[string]string{"User-Agent": "vanity-mirror (analytics dashboard)"}

	var resp cratesResponse
	status, err := c.http.GetJSON(ctx, reqURL, headers, &resp)
	c.countOutcome("crates", status, err)
	if err != nil {
		return PackageDownloads{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return PackageDownloads{}, &upstreamerr.NotFoundError{Source: "crates", Entity: "crate '" + name + "'"}
	case status == http.StatusTooManyRequests:
		return PackageDownloads{}, &upstreamerr.RateLimitError{Source: "crates"}
	case status < 200 || status >= 300:
		return PackageDownloads{}, &upstreamerr.UpstreamError{Source: "crates", Status: status}
	}

	dailyAvg := float64(resp.Crate.RecentDownloads) / 90

	pkg := PackageDownloads{
		Name:             name,
		Registry:         RegistryCrates,
		TotalDownloads:   resp.Crate.Downloads,
		WeeklyDownloads:  int(math.Round(dailyAvg * 7)),
		MonthlyDownloads: int(math.Round(dailyAvg * 30)),
		DailyDownloads:   []DailyDownloads{},
		URL:              fmt.Sprintf("https://crates.io/crates/%s", name),
		CreatedAt:        resp.Crate.CreatedAt,
	}

	c.store.Set(cacheKey, pkg)
	return pkg, nil
}
