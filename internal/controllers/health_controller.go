package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"vanity/internal/structures"
)

type HealthController struct {
	conf      *structures.Config
	startTime time.Time
}

type healthResponse struct {
	Status            string  `json:"status"`
	Uptime            string  `json:"uptime"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	ConfiguredSources int     `json:"configured_sources"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:            "ok",
		Uptime:            formatDuration(uptime),
		UptimeSeconds:     uptime.Seconds(),
		ConfiguredSources: configuredSources(hc.conf),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// configuredSources counts the upstream credential blocks that are complete
// enough to serve requests. Purely informational.
func configuredSources(conf *structures.Config) int {
	n := 0
	if conf.GitHub.Username != "" {
		n++
	}
	if conf.Analytics.ServiceAccountKey != "" && conf.Analytics.BlogPropertyID != "" {
		n++
	}
	if conf.Analytics.ServiceAccountKey != "" && conf.Analytics.SitePropertyID != "" {
		n++
	}
	if conf.PostHog.APIKey != "" && conf.PostHog.ProjectID != "" {
		n++
	}
	if conf.AppStore.KeyID != "" && conf.AppStore.IssuerID != "" && conf.AppStore.PrivateKey != "" &&
		conf.AppStore.AppID != "" && conf.AppStore.VendorNumber != "" {
		n++
	}
	if conf.YouTube.APIKey != "" && conf.YouTube.ChannelID != "" {
		n++
	}
	if conf.Packages.Npm != "" || conf.Packages.Pypi != "" || conf.Packages.Crates != "" {
		n++
	}
	return n
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(conf *structures.Config) *HealthController {
	return &HealthController{
		conf:      conf,
		startTime: time.Now(),
	}
}
