package appstore

import "vanity/internal/models"

// SalesRow is one line of a sales report, trimmed to the columns the
// aggregation reads.
type SalesRow struct {
	SKU                   string
	Title                 string
	Version               string
	ProductTypeIdentifier string
	Units                 int
	DeveloperProceeds     float64
	BeginDate             string
	EndDate               string
	CountryCode           string
}

type SalesData struct {
	TotalUnits     int
	TotalProceeds  float64
	WeeklyUnits    int
	WeeklyProceeds float64
	ReportsByDate  []DailySales
}

type DailySales struct {
	Date     string  `json:"date"`
	Units    int     `json:"units"`
	Proceeds float64 `json:"proceeds"`
}

type CustomerReview struct {
	ID               string `json:"id"`
	Rating           int    `json:"rating"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	ReviewerNickname string `json:"reviewerNickname"`
	CreatedDate      string `json:"createdDate"`
	Territory        string `json:"territory"`
}

type ReviewData struct {
	AverageRating      float64          `json:"averageRating"`
	TotalReviews       int              `json:"totalReviews"`
	RecentReviews      []CustomerReview `json:"recentReviews"`
	RatingDistribution map[int]int      `json:"ratingDistribution"`
}

type SalesMetrics struct {
	TotalDownloads  models.MetricWithTrend `json:"totalDownloads"`
	WeeklyDownloads models.MetricWithTrend `json:"weeklyDownloads"`
	TotalRevenue    models.MetricWithTrend `json:"totalRevenue"`
	WeeklyRevenue   models.MetricWithTrend `json:"weeklyRevenue"`
}

type ReviewSummary struct {
	AverageRating float64          `json:"averageRating"`
	TotalReviews  int              `json:"totalReviews"`
	RecentReviews []CustomerReview `json:"recentReviews"`
}

type DownloadTrendPoint struct {
	Date      string  `json:"date"`
	Downloads int     `json:"downloads"`
	Revenue   float64 `json:"revenue"`
}

type AnalyticsData struct {
	Sales          SalesMetrics         `json:"sales"`
	Reviews        ReviewSummary        `json:"reviews"`
	DownloadTrends []DownloadTrendPoint `json:"downloadTrends"`
}

type reviewsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Rating           int    `json:"rating"`
			Title            string `json:"title"`
			Body             string `json:"body"`
			ReviewerNickname string `json:"reviewerNickname"`
			CreatedDate      string `json:"createdDate"`
			Territory        string `json:"territory"`
		} `json:"attributes"`
	} `json:"data"`
}
