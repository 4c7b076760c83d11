package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanity/internal/structures"
)

func TestHealth_Ok(t *testing.T) {
	hc := NewHealthController(&structures.Config{
		GitHub: structures.GitHubConfig{Username: "octocat"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ConfiguredSources)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	hc := NewHealthController(&structures.Config{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestConfiguredSources(t *testing.T) {
	assert.Equal(t, 0, configuredSources(&structures.Config{}))

	conf := &structures.Config{
		GitHub: structures.GitHubConfig{Username: "octocat"},
		Analytics: structures.GoogleAnalyticsConfig{
			ServiceAccountKey: "a2V5",
			BlogPropertyID:    "1",
			SitePropertyID:    "2",
		},
		PostHog:  structures.PostHogConfig{APIKey: "k", ProjectID: "p"},
		YouTube:  structures.YouTubeConfig{APIKey: "k", ChannelID: "c"},
		Packages: structures.PackagesConfig{Npm: "leftpad"},
	}
	assert.Equal(t, 6, configuredSources(conf))

	// Incomplete blocks do not count.
	conf.PostHog.ProjectID = ""
	assert.Equal(t, 5, configuredSources(conf))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h0m42s", formatDuration(42*time.Second))
	assert.Equal(t, "25h1m5s", formatDuration(25*time.Hour+time.Minute+5*time.Second))
}
