package models

import (
	"fmt"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Window is an inclusive date range. All analytics queries operate on whole
// calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseWindow validates a YYYY-MM-DD pair with start <= end.
func ParseWindow(startDate, endDate string) (Window, error) {
	if !dateRe.MatchString(startDate) || !dateRe.MatchString(endDate) {
		return Window{}, fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date: %w", err)
	}
	if start.After(end) {
		return Window{}, fmt.Errorf("start date must not be after end date")
	}
	return Window{Start: start, End: end}, nil
}

// Days returns the inclusive day count of the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Previous returns the immediately preceding span of identical length.
// This symmetric rule is the trend-comparison policy for every source.
func (w Window) Previous() Window {
	days := w.Days()
	prevEnd := w.Start.AddDate(0, 0, -1)
	return Window{
		Start: prevEnd.AddDate(0, 0, -(days - 1)),
		End:   prevEnd,
	}
}

func (w Window) StartDate() string { return w.Start.Format(dateLayout) }
func (w Window) EndDate() string   { return w.End.Format(dateLayout) }

// Key is the cache-key fragment identifying this window.
func (w Window) Key() string { return w.StartDate() + ":" + w.EndDate() }
