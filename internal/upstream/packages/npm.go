package packages

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"vanity/internal/models"
	"vanity/internal/upstreamerr"
)

type npmRangeResponse struct {
	Downloads []struct {
		Downloads int    `json:"downloads"`
		Day       string `json:"day"`
	} `json:"downloads"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Package string `json:"package"`
}

func (c *Client) fetchNpmPackage(ctx context.Context, name string, window models.Window) (PackageDownloads, error) {
	cacheKey := fmt.Sprintf("npm:%s:%s", name, window.Key())
	if cached, ok := c.store.Get(cacheKey); ok {
		return cached, nil
	}

	// PathEscape handles scoped packages (@scope/name).
	reqURL := fmt.Sprintf("%s/downloads/range/%s:%s/%s",
		c.npmAPI, window.StartDate(), window.EndDate(), url.PathEscape(name))

	var resp npmRangeResponse
	status, err := c.http.GetJSON(ctx, reqURL, nil, &resp)
	c.countOutcome("npm", status, err)
	if err != nil {
		return PackageDownloads{}, err
	}
	if status == http.StatusNotFound {
		return PackageDownloads{}, &upstreamerr.NotFoundError{Source: "npm", Entity: "package '" + name + "'"}
	}
	if status < 200 || status >= 300 {
		return PackageDownloads{}, &upstreamerr.UpstreamError{Source: "npm", Status: status}
	}

	daily := make([]DailyDownloads, 0, len(resp.Downloads))
	total := 0
	for _, d := range resp.Downloads {
		daily = append(daily, DailyDownloads{Date: d.Day, Downloads: d.Downloads})
		total += d.Downloads
	}

	pkg := PackageDownloads{
		Name:             name,
		Registry:         RegistryNpm,
		TotalDownloads:   total,
		WeeklyDownloads:  tailSum(daily, 7),
		MonthlyDownloads: tailSum(daily, 30),
		DailyDownloads:   daily,
		URL:              "https://www.npmjs.com/package/" + name,
	}

	c.store.Set(cacheKey, pkg)
	return pkg, nil
}

func (c *Client) countOutcome(source string, status int, err error) {
	switch {
	case err != nil:
		c.metrics.IncUpstreamRequests(source, "error")
	case status >= 200 && status < 300:
		c.metrics.IncUpstreamRequests(source, "ok")
	default:
		c.metrics.IncUpstreamRequests(source, "error")
	}
}
