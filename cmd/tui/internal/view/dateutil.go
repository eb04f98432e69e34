package view

import (
	"time"

	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

type Timeframe int

const (
	TimeframeAll       Timeframe = 0
	TimeframeThisMonth Timeframe = 1
	TimeframeLastMonth Timeframe = 2
	TimeframeThisYear  Timeframe = 3

	timeframeCount = 4
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeAll:
		return "All Time"
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeThisYear:
		return "This Year"
	}

	return "Unknown"
}

func (t Timeframe) Next() Timeframe {
	return (t + 1) % timeframeCount
}

// Range returns the inclusive effective date bounds of t relative to now.
// TimeframeAll has no bounds.
func (t Timeframe) Range(now time.Time) (*transaction.Date, *transaction.Date) {
	var start, end time.Time

	switch t {
	case TimeframeThisMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	case TimeframeLastMonth:
		start = time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	case TimeframeThisYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return nil, nil
	}

	return new(transaction.NewDate(start.Year(), start.Month(), start.Day())),
		new(transaction.NewDate(end.Year(), end.Month(), end.Day()))
}
