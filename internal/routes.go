package internal

import (
	"vanity/internal/controllers"
	"vanity/internal/providers"
)

func InitRoutes(analyticsController *controllers.AnalyticsController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/api/github/analytics", analyticsController.GithubAnalytics())
	routers.Get("/api/blog/analytics", analyticsController.BlogAnalytics())
	routers.Get("/api/site/analytics", analyticsController.SiteAnalytics())
	routers.Get("/api/product/analytics", analyticsController.ProductAnalytics())
	routers.Get("/api/packages/analytics", analyticsController.PackagesAnalytics())
	routers.Get("/api/apps/analytics", analyticsController.AppsAnalytics())
	routers.Get("/api/youtube/analytics", analyticsController.YoutubeAnalytics())
	return routers
}
