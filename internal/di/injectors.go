//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"vanity/internal"
	"vanity/internal/controllers"
	"vanity/internal/providers"
	"vanity/internal/structures"
	"vanity/internal/upstream/appstore"
	"vanity/internal/upstream/ganalytics"
	"vanity/internal/upstream/github"
	"vanity/internal/upstream/packages"
	"vanity/internal/upstream/posthog"
	"vanity/internal/upstream/youtube"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewCacheProvider,
		providers.NewMetricsProvider,
		providers.NewRateLimitProvider,
		provideHTTPClient,

		github.NewClient,
		wire.Bind(new(github.Interface), new(*github.Client)),
		ganalytics.NewClient,
		wire.Bind(new(ganalytics.Interface), new(*ganalytics.Client)),
		posthog.NewClient,
		wire.Bind(new(posthog.Interface), new(*posthog.Client)),
		appstore.NewClient,
		wire.Bind(new(appstore.Interface), new(*appstore.Client)),
		youtube.NewClient,
		wire.Bind(new(youtube.Interface), new(*youtube.Client)),
		packages.NewClient,
		wire.Bind(new(packages.Interface), new(*packages.Client)),

		controllers.NewAnalyticsController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
