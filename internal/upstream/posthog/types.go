package posthog

import "vanity/internal/models"

type Metrics struct {
	Visitors           models.MetricWithTrend `json:"visitors"`
	UniqueVisitors     models.MetricWithTrend `json:"uniqueVisitors"`
	TotalEvents        models.MetricWithTrend `json:"totalEvents"`
	AvgSessionDuration models.MetricWithTrend `json:"avgSessionDuration"`
}

type ActiveUsers struct {
	DAU int `json:"dau"`
	WAU int `json:"wau"`
	MAU int `json:"mau"`
}

type TopEvent struct {
	EventName   string `json:"eventName"`
	Count       int    `json:"count"`
	UniqueUsers int    `json:"uniqueUsers"`
}

type AnalyticsData struct {
	Metrics     Metrics                  `json:"metrics"`
	ActiveUsers ActiveUsers              `json:"activeUsers"`
	TimeSeries  []models.TimeSeriesPoint `json:"timeSeries"`
	TopEvents   []TopEvent               `json:"topEvents"`
}

// Query wire shapes. Event is a pointer because a null event means
// "all events" in a TrendsQuery series.

type eventsNode struct {
	Kind  string  `json:"kind"`
	Event *string `json:"event"`
	Math  string  `json:"math"`
}

type trendsDateRange struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

type trendsFilter struct {
	Display string `json:"display"`
}

type trendsQuery struct {
	Kind         string          `json:"kind"`
	DateRange    trendsDateRange `json:"dateRange"`
	Series       []eventsNode    `json:"series"`
	Interval     string          `json:"interval,omitempty"`
	TrendsFilter *trendsFilter   `json:"trendsFilter,omitempty"`
}

type hogQLQuery struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

type queryEnvelope struct {
	Query any `json:"query"`
}

// Older deployments answer under "result" instead of "results".
type trendsResult struct {
	Data            []float64 `json:"data"`
	Days            []string  `json:"days"`
	Labels          []string  `json:"labels"`
	AggregatedValue *float64  `json:"aggregated_value"`
}

type queryResponse struct {
	Results []trendsResult `json:"results"`
	Result  []trendsResult `json:"result"`
}

func (r *queryResponse) rows() []trendsResult {
	if len(r.Results) > 0 {
		return r.Results
	}
	return r.Result
}

type hogQLResponse struct {
	Results [][]any  `json:"results"`
	Columns []string `json:"columns"`
}
