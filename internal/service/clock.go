package service

import (
	"fmt"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Calendar maps instants to calendar days in the business timezone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc. A nil location means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA timezone name such as "Asia/Seoul".
func LoadCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// Location returns the business timezone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Day returns the YYYY-MM-DD calendar day of t in the business timezone.
func (c Calendar) Day(t time.Time) string {
	return t.In(c.Location()).Format(domain.DateLayout)
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// ParseDay parses a YYYY-MM-DD string as local midnight.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(domain.DateLayout, s, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidInput, s)
	}
	return t, nil
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time // local midnight of the first day
	To   time.Time // local midnight of the last day
}

// Days enumerates every day in the range. Date arithmetic keeps the walk
// correct across DST shifts.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Bounds returns the first and last day as YYYY-MM-DD strings.
func (r DateRange) Bounds() (string, string) {
	return r.From.Format(domain.DateLayout), r.To.Format(domain.DateLayout)
}

// Period selects a preset statistics window.
type Period string

const (
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodCustom  Period = "custom"
)

// maxRangeDays bounds custom ranges so a request cannot enumerate years of days.
const maxRangeDays = 366

// ResolvePeriod turns a period and optional custom bounds into a date range
// ending today. Preset windows reach back 7, 30 or 90 days.
func (c Calendar) ResolvePeriod(period Period, startDate, endDate string, now time.Time) (DateRange, error) {
	today := c.StartOfDay(now)
	switch period {
	case "", PeriodWeek:
		return DateRange{From: today.AddDate(0, 0, -7), To: today}, nil
	case PeriodMonth:
		return DateRange{From: today.AddDate(0, 0, -30), To: today}, nil
	case PeriodQuarter:
		return DateRange{From: today.AddDate(0, 0, -90), To: today}, nil
	case PeriodCustom:
		if startDate == "" || endDate == "" {
			return DateRange{}, fmt.Errorf("%w: custom period requires startDate and endDate", domain.ErrInvalidInput)
		}
		from, err := c.ParseDay(startDate)
		if err != nil {
			return DateRange{}, err
		}
		to, err := c.ParseDay(endDate)
		if err != nil {
			return DateRange{}, err
		}
		if to.Before(from) {
			return DateRange{}, fmt.Errorf("%w: endDate before startDate", domain.ErrInvalidInput)
		}
		if from.AddDate(0, 0, maxRangeDays).Before(to) {
			return DateRange{}, fmt.Errorf("%w: range exceeds %d days", domain.ErrInvalidInput, maxRangeDays)
		}
		return DateRange{From: from, To: to}, nil
	}
	return DateRange{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidInput, period)
}
