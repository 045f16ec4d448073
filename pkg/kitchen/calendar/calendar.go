// Package calendar enumerates the days of a target month and computes
// public holidays using the Anonymous Gregorian algorithm for Easter and
// its derived feasts (spec §4.1). It is a pure, dependency-free package:
// callers who want a different holiday source can supply their own
// []time.Time to WorkingDays, or use a HolidaysProvider implementation
// such as pkg/holidaysource/ukbank instead of Holidays.
package calendar

import (
	"fmt"
	"time"
)

// Holiday is a single named public holiday.
type Holiday struct {
	Code string
	Date time.Time
	Name string
}

// HolidaysProvider is the §6 collaborator contract: a pure, stable
// function from year to holiday set. Holidays (this package) implements
// it using the Anonymous Gregorian algorithm; pkg/holidaysource/ukbank
// implements it using a real holiday-calendar library for callers who
// want production UK bank holidays instead.
type HolidaysProvider interface {
	Holidays(year int) ([]Holiday, error)
}

// MonthDays returns every date in the given "YYYY-MM" month, in order.
func MonthDays(month string) ([]time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("malformed month %q: %w", month, err)
	}

	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, 0).Add(-time.Hour * 24).Day()

	days := make([]time.Time, daysInMonth)
	for i := 0; i < daysInMonth; i++ {
		days[i] = first.AddDate(0, 0, i)
	}
	return days, nil
}

// WorkingDays filters out Saturdays, Sundays, and any date present in
// holidays from days.
func WorkingDays(days []time.Time, holidays []time.Time) []time.Time {
	holidaySet := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		holidaySet[h.Format("2006-01-02")] = true
	}

	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if holidaySet[d.Format("2006-01-02")] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// AnonymousGregorian is the HolidaysProvider backed by Holidays below.
type AnonymousGregorian struct{}

func (AnonymousGregorian) Holidays(year int) ([]Holiday, error) {
	return Holidays(year)
}

// Holidays computes the public holiday set for a year: New Year's Day,
// Good Friday, Easter Monday (both derived from the Anonymous Gregorian
// Easter algorithm), the early-May, spring and summer bank holidays, and
// Christmas/Boxing Day - each nudged forward to the next working day when
// it falls on a weekend (the standard UK "substitute day" rule), except
// Good Friday/Easter Monday which never fall on a weekend by construction.
func Holidays(year int) ([]Holiday, error) {
	if year < 1583 {
		return nil, fmt.Errorf("year %d predates the Gregorian calendar", year)
	}

	easter := anonymousGregorianEaster(year)
	goodFriday := easter.AddDate(0, 0, -2)
	easterMonday := easter.AddDate(0, 0, 1)

	holidays := []Holiday{
		{Code: "new-year", Date: substituteWeekend(date(year, 1, 1)), Name: "New Year's Day"},
		{Code: "good-friday", Date: goodFriday, Name: "Good Friday"},
		{Code: "easter-monday", Date: easterMonday, Name: "Easter Monday"},
		{Code: "early-may", Date: firstMondayOf(year, time.May), Name: "Early May Bank Holiday"},
		{Code: "spring", Date: lastMondayOf(year, time.May), Name: "Spring Bank Holiday"},
		{Code: "summer", Date: lastMondayOf(year, time.August), Name: "Summer Bank Holiday"},
		{Code: "christmas", Date: substituteWeekend(date(year, 12, 25)), Name: "Christmas Day"},
		{Code: "boxing-day", Date: substituteAfter(date(year, 12, 26), date(year, 12, 25)), Name: "Boxing Day"},
	}

	return holidays, nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// anonymousGregorianEaster computes the date of Easter Sunday for year
// using the Anonymous Gregorian algorithm (aka the Meeus/Jones/Butcher
// algorithm).
func anonymousGregorianEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return date(year, time.Month(month), day)
}

// substituteWeekend moves a fixed holiday falling on Saturday/Sunday to
// the following Monday.
func substituteWeekend(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// substituteAfter moves d forward past weekend days and past the date it
// immediately follows (used for Boxing Day, which must also skip past a
// substituted Christmas Day).
func substituteAfter(d time.Time, previous time.Time) time.Time {
	candidate := d
	for candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday || !candidate.After(substituteWeekend(previous)) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func firstMondayOf(year int, month time.Month) time.Time {
	d := date(year, month, 1)
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

func lastMondayOf(year int, month time.Month) time.Time {
	firstOfNextMonth := date(year, month, 1).AddDate(0, 1, 0)
	last := firstOfNextMonth.AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(time.Monday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}
