package ganalytics

import "vanity/internal/models"

type Metrics struct {
	Visitors           models.MetricWithTrend `json:"visitors"`
	UniqueVisitors     models.MetricWithTrend `json:"uniqueVisitors"`
	AvgSessionDuration models.MetricWithTrend `json:"avgSessionDuration"`
	AvgUsersPerDay     models.MetricWithTrend `json:"avgUsersPerDay"`
}

type TopPage struct {
	PagePath       string  `json:"pagePath"`
	PageTitle      string  `json:"pageTitle"`
	Pageviews      int     `json:"pageviews"`
	UniqueVisitors int     `json:"uniqueVisitors"`
	AvgTimeOnPage  int     `json:"avgTimeOnPage"`
	BounceRate     float64 `json:"bounceRate"`
}

type AnalyticsData struct {
	Metrics    Metrics                  `json:"metrics"`
	TimeSeries []models.TimeSeriesPoint `json:"timeSeries"`
	TopPages   []TopPage                `json:"topPages"`
}

// runReport request and response mirror the GA4 Data API v1beta wire shapes.
// Metric values always arrive as strings.

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type dimensionSpec struct {
	Name string `json:"name"`
}

type metricSpec struct {
	Name string `json:"name"`
}

type dimensionOrderBy struct {
	DimensionName string `json:"dimensionName"`
}

type metricOrderBy struct {
	MetricName string `json:"metricName"`
}

type orderBy struct {
	Dimension *dimensionOrderBy `json:"dimension,omitempty"`
	Metric    *metricOrderBy    `json:"metric,omitempty"`
	Desc      bool              `json:"desc,omitempty"`
}

type runReportRequest struct {
	DateRanges []dateRange     `json:"dateRanges"`
	Dimensions []dimensionSpec `json:"dimensions,omitempty"`
	Metrics    []metricSpec    `json:"metrics"`
	OrderBys   []orderBy       `json:"orderBys,omitempty"`
	Limit      int             `json:"limit,omitempty"`
}

type reportValue struct {
	Value string `json:"value"`
}

type reportRow struct {
	DimensionValues []reportValue `json:"dimensionValues"`
	MetricValues    []reportValue `json:"metricValues"`
}

type runReportResponse struct {
	Rows []reportRow `json:"rows"`
}
