package packages

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"vanity/internal/models"
	"vanity/internal/upstreamerr"
)

type pypiOverallResponse struct {
	Data []struct {
		Category  string `json:"category"`
		Date      string `json:"date"`
		Downloads int    `json:"downloads"`
	} `json:"data"`
	Package string `json:"package"`
	Type    string `json:"type"`
}

// fetchPypiPackage pulls the overall download history (pypistats keeps
// roughly 180 days) and filters it to the requested window. The
// without_mirrors category is preferred; the full data set is the fallback
// when the category is absent.
func (c *Client) fetchPypiPackage(ctx context.Context, name string, window models.Window) (PackageDownloads, error) {
	cacheKey := fmt.Sprintf("pypi:%s:%s", name, window.Key())
	if cached, ok := c.store.Get(cacheKey); ok {
		return cached, nil
	}

	reqURL := fmt.Sprintf("%s/api/packages/%s/overall?mirrors=true", c.pypiAPI, name)

	var resp pypiOverallResponse
	status, err := c.http.GetJSON(ctx, reqURL, nil, &resp)
	c.countOutcome("pypi", status, err)
	if err != nil {
		return PackageDownloads{}, err
	}
	if status == http.StatusNotFound {
		return PackageDownloads{}, &upstreamerr.NotFoundError{Source: "pypi", Entity: "package '" + name + "'"}
	}
	if status < 200 || status >= 300 {
		return PackageDownloads{}, &upstreamerr.UpstreamError{Source: "pypi", Status: status}
	}

	hasWithoutMirrors := false
	for _, d := range resp.Data {
		if d.Category == "without_mirrors" {
			hasWithoutMirrors = true
			break
		}
	}

	start, end := window.StartDate(), window.EndDate()
	byDate := make(map[string]int)
	for _, d := range resp.Data {
		if hasWithoutMirrors && d.Category != "without_mirrors" {
			continue
		}
		if d.Date < start || d.Date > end {
			continue
		}
		byDate[d.Date] += d.Downloads
	}

	daily := make([]DailyDownloads, 0, len(byDate))
	total := 0
	for date, downloads := range byDate {
		daily = append(daily, DailyDownloads{Date: date, Downloads: downloads})
		total += downloads
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	pkg := PackageDownloads{
		Name:             name,
		Registry:         RegistryPypi,
		TotalDownloads:   total,
		WeeklyDownloads:  tailSum(daily, 7),
		MonthlyDownloads: tailSum(daily, 30),
		DailyDownloads:   daily,
		URL:              fmt.Sprintf("https://pypi.org/project/%s/", name),
	}

	c.store.Set(cacheKey, pkg)
	return pkg, nil
}
