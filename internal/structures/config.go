package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	File  string `yaml:"file"`
}

type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Size        int           `yaml:"size"`
	ResponseTTL time.Duration `yaml:"responseTTL"`
	ClientTTL   time.Duration `yaml:"clientTTL"`
	OverviewTTL time.Duration `yaml:"overviewTTL"`
}

type RateLimitConfig struct {
	MaxRequests     int           `yaml:"maxRequests" validate:"required|min:1"`
	Window          time.Duration `yaml:"window" validate:"required|min:1"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type UpstreamConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Credential blocks below are resolved from the environment by the config
// provider. None of them is required at startup: a source with incomplete
// credentials stays unconfigured and fails per request instead.

type GitHubConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type GoogleAnalyticsConfig struct {
	BlogPropertyID    string `yaml:"blogPropertyId"`
	SitePropertyID    string `yaml:"sitePropertyId"`
	DocsPropertyID    string `yaml:"docsPropertyId"`
	ServiceAccountKey string `yaml:"serviceAccountKey"` // base64 JSON blob
}

type PostHogConfig struct {
	APIKey    string `yaml:"apiKey"`
	ProjectID string `yaml:"projectId"`
	Host      string `yaml:"host"`
}

type AppStoreConfig struct {
	KeyID        string `yaml:"keyId"`
	IssuerID     string `yaml:"issuerId"`
	PrivateKey   string `yaml:"privateKey"` // base64 PEM blob
	AppID        string `yaml:"appId"`
	VendorNumber string `yaml:"vendorNumber"`
}

type YouTubeConfig struct {
	APIKey    string `yaml:"apiKey"`
	ChannelID string `yaml:"channelId"`
}

type PackagesConfig struct {
	Npm    string `yaml:"npm"`    // comma-separated package names
	Pypi   string `yaml:"pypi"`   // comma-separated package names
	Crates string `yaml:"crates"` // comma-separated crate names
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server                `yaml:"webServer"`
	Logger    LoggerConfig          `yaml:"logger"`
	Cache     CacheConfig           `yaml:"cache"`
	RateLimit RateLimitConfig       `yaml:"rateLimit"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Upstream  UpstreamConfig        `yaml:"upstream"`
	GitHub    GitHubConfig          `yaml:"github"`
	Analytics GoogleAnalyticsConfig `yaml:"analytics"`
	PostHog   PostHogConfig         `yaml:"posthog"`
	AppStore  AppStoreConfig        `yaml:"appStore"`
	YouTube   YouTubeConfig         `yaml:"youtube"`
	Packages  PackagesConfig        `yaml:"packages"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}
