package models

import "math"

// MetricWithTrend pairs a metric with its previous-period value and the
// percentage change between them.
type MetricWithTrend struct {
	Value         float64 `json:"value"`
	PreviousValue float64 `json:"previousValue"`
	Trend         int     `json:"trend"`
}

// Trend returns the rounded percentage change from previous to current.
// A zero previous value is defined as 100% growth when current is positive
// and 0% otherwise, so the trend stays bounded.
func Trend(current, previous float64) int {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round((current - previous) / previous * 100))
}

func NewMetric(current, previous float64) MetricWithTrend {
	return MetricWithTrend{
		Value:         current,
		PreviousValue: previous,
		Trend:         Trend(current, previous),
	}
}

// TimeSeriesPoint is one bucket of a visitors series, ascending by date.
// Missing upstream days are simply absent; no gaps are synthesized.
type TimeSeriesPoint struct {
	Date           string `json:"date"`
	Visitors       int    `json:"visitors"`
	UniqueVisitors int    `json:"uniqueVisitors"`
}
