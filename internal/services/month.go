package services

import (
	"fmt"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
)

// ResolveMonth maps an instant to its Gregorian calendar month in loc.
// Labels are English three-letter abbreviations; SortTimestamp is the last
// millisecond of the month.
func ResolveMonth(t time.Time, loc *time.Location) models.MonthKey {
	if loc == nil {
		loc = time.UTC
	}

	local := t.In(loc)
	year, month, _ := local.Date()
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)

	return models.MonthKey{
		Key:           fmt.Sprintf("%04d-%02d", year, int(month)),
		Label:         month.String()[:3],
		Year:          year,
		SortTimestamp: firstOfNext.Add(-time.Millisecond),
	}
}
