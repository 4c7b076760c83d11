package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"vanity/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "VANITY_LOG_LEVEL")
	viper.BindEnv("cache.enabled", "VANITY_CACHE_ENABLED")
	viper.BindEnv("cache.size", "VANITY_CACHE_SIZE")
	viper.BindEnv("rateLimit.maxRequests", "VANITY_RATE_LIMIT_MAX")
	viper.BindEnv("rateLimit.window", "VANITY_RATE_LIMIT_WINDOW")

	// Upstream credentials come from the environment; the yaml keys exist so
	// local development can pin them in a file instead.
	viper.BindEnv("github.username", "GITHUB_USERNAME")
	viper.BindEnv("github.token", "GITHUB_TOKEN")
	viper.BindEnv("analytics.blogPropertyId", "BLOG_GA_PROPERTY_ID")
	viper.BindEnv("analytics.sitePropertyId", "SITE_GA_PROPERTY_ID")
	viper.BindEnv("analytics.docsPropertyId", "DOCS_GA_PROPERTY_ID")
	viper.BindEnv("analytics.serviceAccountKey", "GOOGLE_SERVICE_ACCOUNT_KEY")
	viper.BindEnv("posthog.apiKey", "POSTHOG_API_KEY")
	viper.BindEnv("posthog.projectId", "POSTHOG_PROJECT_ID")
	viper.BindEnv("posthog.host", "POSTHOG_HOST")
	viper.BindEnv("appStore.keyId", "APP_STORE_CONNECT_KEY_ID")
	viper.BindEnv("appStore.issuerId", "APP_STORE_CONNECT_ISSUER_ID")
	viper.BindEnv("appStore.privateKey", "APP_STORE_CONNECT_PRIVATE_KEY")
	viper.BindEnv("appStore.appId", "APP_STORE_CONNECT_APP_ID")
	viper.BindEnv("appStore.vendorNumber", "APP_STORE_CONNECT_VENDOR_NUMBER")
	viper.BindEnv("youtube.apiKey", "YOUTUBE_API_KEY")
	viper.BindEnv("youtube.channelId", "YOUTUBE_CHANNEL_ID")
	viper.BindEnv("packages.npm", "NPM_PACKAGES")
	viper.BindEnv("packages.pypi", "PYPI_PACKAGES")
	viper.BindEnv("packages.crates", "CRATES_PACKAGES")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "VanityMirror"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
