// Package rules evaluates a produced schedule against a RuleSet and
// reports every violation found. Evaluate is a pure function: it never
// mutates its inputs and never logs, matching the pure/orchestration
// split the engine package enforces (spec §9).
package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// Evaluate computes every violation in ctx.Rules against entries, per §4.2.
// The returned slice is sorted for deterministic output: by scope, then by
// day/ISO-week/resource, then by violation code.
func Evaluate(ctx model.SchedulingContext, entries []model.Assignment) []model.Violation {
	var violations []model.Violation

	if len(entries) == 0 {
		violations = append(violations, model.Violation{
			Code:     "empty-schedule",
			Message:  "no assignments were produced for this schedule",
			Severity: model.SeverityWarning,
			Scope:    model.ScopeSchedule,
		})
		return violations
	}

	byDay := groupByDay(entries)
	byResource := groupByResource(entries)

	violations = append(violations, staffingShortfalls(ctx, byDay)...)
	violations = append(violations, roleCompositionViolations(ctx, byDay)...)
	violations = append(violations, weeklyHourViolations(ctx, byResource)...)
	violations = append(violations, weeklyDayViolations(ctx, byResource)...)
	violations = append(violations, consecutiveDayViolations(ctx, byResource)...)
	violations = append(violations, restWindowViolations(ctx, byResource)...)

	sortViolations(violations)
	return violations
}

func groupByDay(entries []model.Assignment) map[string][]model.Assignment {
	out := make(map[string][]model.Assignment)
	for _, e := range entries {
		key := e.Date.Format("2006-01-02")
		out[key] = append(out[key], e)
	}
	return out
}

func groupByResource(entries []model.Assignment) map[int][]model.Assignment {
	out := make(map[int][]model.Assignment)
	for _, e := range entries {
		out[e.ResourceID] = append(out[e.ResourceID], e)
	}
	return out
}

func roleOf(ctx model.SchedulingContext, resourceID int) (model.Role, bool) {
	for _, r := range ctx.Resources {
		if r.ID == resourceID {
			return r.Role, true
		}
	}
	return "", false
}

func dayKeys(byDay map[string][]model.Assignment) []string {
	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// staffingShortfalls reports days where the count of shift (not rest,
// not absence) assignments is below minimum_daily_staff.
func staffingShortfalls(ctx model.SchedulingContext, byDay map[string][]model.Assignment) []model.Violation {
	var out []model.Violation
	for _, key := range dayKeys(byDay) {
		day := mustParseDay(key)
		working := 0
		for _, a := range byDay[key] {
			if a.IsWorkDay() {
				working++
			}
		}
		if working < ctx.Rules.Shifts.MinimumDailyStaff {
			d := day
			out = append(out, model.Violation{
				Code:     "staffing-shortfall",
				Message:  fmt.Sprintf("day %s has %d shift assignments, below minimum_daily_staff %d", key, working, ctx.Rules.Shifts.MinimumDailyStaff),
				Severity: model.SeverityWarning,
				Scope:    model.ScopeDay,
				Day:      &d,
				Meta:     map[string]any{"count": working, "minimum": ctx.Rules.Shifts.MinimumDailyStaff},
			})
		}
	}
	return out
}

// roleCompositionViolations reports per-day role-group min shortfalls and
// max overruns, in the composition's declared order.
func roleCompositionViolations(ctx model.SchedulingContext, byDay map[string][]model.Assignment) []model.Violation {
	var out []model.Violation
	for _, key := range dayKeys(byDay) {
		day := mustParseDay(key)
		counts := make(map[model.RoleGroup]int)
		for _, a := range byDay[key] {
			if !a.IsWorkDay() {
				continue
			}
			role, ok := roleOf(ctx, a.ResourceID)
			if !ok {
				continue
			}
			counts[model.GroupOf(role)]++
		}
		for _, comp := range ctx.Rules.Shifts.Composition {
			count := counts[comp.Group]
			if comp.Min != nil && count < *comp.Min {
				d := day
				out = append(out, model.Violation{
					Code:     "role-min-shortfall",
					Message:  fmt.Sprintf("day %s: %s has %d, below minimum %d", key, comp.Group, count, *comp.Min),
					Severity: model.SeverityCritical,
					Scope:    model.ScopeDay,
					Day:      &d,
					Meta:     map[string]any{"group": string(comp.Group), "count": count, "minimum": *comp.Min},
				})
			}
			if comp.Max != nil && count > *comp.Max {
				d := day
				out = append(out, model.Violation{
					Code:     "role-max-exceeded",
					Message:  fmt.Sprintf("day %s: %s has %d, above maximum %d", key, comp.Group, count, *comp.Max),
					Severity: model.SeverityWarning,
					Scope:    model.ScopeDay,
					Day:      &d,
					Meta:     map[string]any{"group": string(comp.Group), "count": count, "maximum": *comp.Max},
				})
			}
		}
	}
	return out
}

type isoWeekKey struct {
	year, week int
}

func (k isoWeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", k.year, k.week)
}

func isoWeekOf(day time.Time) isoWeekKey {
	y, w := day.ISOWeek()
	return isoWeekKey{year: y, week: w}
}

func weeklyHourViolations(ctx model.SchedulingContext, byResource map[int][]model.Assignment) []model.Violation {
	var out []model.Violation
	for _, resourceID := range sortedResourceIDs(byResource) {
		hoursByWeek := make(map[isoWeekKey]float64)
		for _, a := range byResource[resourceID] {
			if a.ShiftCode == nil {
				continue
			}
			shift, ok := ctx.Shifts.ByCode(*a.ShiftCode)
			if !ok {
				continue
			}
			hoursByWeek[isoWeekOf(a.Date)] += shift.Hours
		}
		for _, wk := range sortedWeekKeys(hoursByWeek) {
			hours := hoursByWeek[wk]
			if hours > ctx.Rules.WorkingTime.MaxHoursPerWeek {
				rid := resourceID
				out = append(out, model.Violation{
					Code:       "hours-per-week-exceeded",
					Message:    fmt.Sprintf("resource %d: %.2fh in week %s, above maximum %.2fh", resourceID, hours, wk, ctx.Rules.WorkingTime.MaxHoursPerWeek),
					Severity:   model.SeverityCritical,
					Scope:      model.ScopeWeek,
					ResourceID: &rid,
					ISOWeek:    wk.String(),
					Meta:       map[string]any{"hours": hours, "maximum": ctx.Rules.WorkingTime.MaxHoursPerWeek},
				})
			}
		}
	}
	return out
}

func weeklyDayViolations(ctx model.SchedulingContext, byResource map[int][]model.Assignment) []model.Violation {
	var out []model.Violation
	for _, resourceID := range sortedResourceIDs(byResource) {
		daysByWeek := make(map[isoWeekKey]int)
		for _, a := range byResource[resourceID] {
			if !a.IsWorkDay() {
				continue
			}
			daysByWeek[isoWeekOf(a.Date)]++
		}
		for _, wk := range sortedWeekKeys(daysByWeek) {
			days := daysByWeek[wk]
			if days > ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek {
				rid := resourceID
				out = append(out, model.Violation{
					Code:       "days-per-week-exceeded",
					Message:    fmt.Sprintf("resource %d: %d working days in week %s, above maximum %d", resourceID, days, wk, ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek),
					Severity:   model.SeverityCritical,
					Scope:      model.ScopeWeek,
					ResourceID: &rid,
					ISOWeek:    wk.String(),
					Meta:       map[string]any{"days": days, "maximum": ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek},
				})
			}
		}
	}
	return out
}

// consecutiveDayViolations reports the longest consecutive-worked run per
// resource against max_consecutive_working_days.
func consecutiveDayViolations(ctx model.SchedulingContext, byResource map[int][]model.Assignment) []model.Violation {
	var out []model.Violation
	for _, resourceID := range sortedResourceIDs(byResource) {
		days := workDaySet(byResource[resourceID])
		longest := longestRun(days)
		if longest > ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays {
			rid := resourceID
			out = append(out, model.Violation{
				Code:       "consecutive-days-exceeded",
				Message:    fmt.Sprintf("resource %d: %d consecutive working days, above maximum %d", resourceID, longest, ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays),
				Severity:   model.SeverityCritical,
				Scope:      model.ScopeResource,
				ResourceID: &rid,
				Meta:       map[string]any{"run": longest, "maximum": ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays},
			})
		}
	}
	return out
}

// restWindowViolations reports resources with no qualifying rest window
// within the scheduled month.
func restWindowViolations(ctx model.SchedulingContext, byResource map[int][]model.Assignment) []model.Violation {
	required := ctx.Rules.WorkingTime.RequiredConsecutiveDaysOffPerMonth
	if required <= 0 {
		return nil
	}

	monthDays, err := monthDateRange(ctx.Month)
	if err != nil {
		return nil
	}

	var out []model.Violation
	for _, resourceID := range sortedResourceIDs(byResource) {
		worked := workDaySet(byResource[resourceID])
		if hasRestWindow(monthDays, worked, required) {
			continue
		}
		rid := resourceID
		out = append(out, model.Violation{
			Code:       "insufficient-consecutive-rest",
			Message:    fmt.Sprintf("resource %d: no %d-day window without a shift assignment this month", resourceID, required),
			Severity:   model.SeverityWarning,
			Scope:      model.ScopeResource,
			ResourceID: &rid,
			Meta:       map[string]any{"required_days": required},
		})
	}
	return out
}

func hasRestWindow(monthDays []time.Time, worked map[string]bool, required int) bool {
	if len(monthDays) < required {
		return false
	}
	for start := 0; start+required <= len(monthDays); start++ {
		clear := true
		for i := start; i < start+required; i++ {
			if worked[monthDays[i].Format("2006-01-02")] {
				clear = false
				break
			}
		}
		if clear {
			return true
		}
	}
	return false
}

func workDaySet(entries []model.Assignment) map[string]bool {
	out := make(map[string]bool)
	for _, a := range entries {
		if a.IsWorkDay() {
			out[a.Date.Format("2006-01-02")] = true
		}
	}
	return out
}

func longestRun(worked map[string]bool) int {
	dates := make([]time.Time, 0, len(worked))
	for k := range worked {
		dates = append(dates, mustParseDay(k))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	longest, current := 0, 0
	var prev time.Time
	for i, d := range dates {
		if i == 0 || !d.Equal(prev.AddDate(0, 0, 1)) {
			current = 1
		} else {
			current++
		}
		if current > longest {
			longest = current
		}
		prev = d
	}
	return longest
}

func monthDateRange(month string) ([]time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, err
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, 0).Add(-time.Hour * 24).Day()
	out := make([]time.Time, daysInMonth)
	for i := 0; i < daysInMonth; i++ {
		out[i] = first.AddDate(0, 0, i)
	}
	return out, nil
}

func mustParseDay(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func sortedResourceIDs(byResource map[int][]model.Assignment) []int {
	ids := make([]int, 0, len(byResource))
	for id := range byResource {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedWeekKeys(m interface{}) []isoWeekKey {
	var keys []isoWeekKey
	switch mm := m.(type) {
	case map[isoWeekKey]float64:
		for k := range mm {
			keys = append(keys, k)
		}
	case map[isoWeekKey]int:
		for k := range mm {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})
	return keys
}

// sortViolations orders violations deterministically: scope order, then
// day, then ISO week, then resource id, then code.
func sortViolations(violations []model.Violation) {
	scopeOrder := map[model.Scope]int{
		model.ScopeSchedule: 0,
		model.ScopeDay:      1,
		model.ScopeWeek:     2,
		model.ScopeMonth:    3,
		model.ScopeResource: 4,
	}
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if scopeOrder[a.Scope] != scopeOrder[b.Scope] {
			return scopeOrder[a.Scope] < scopeOrder[b.Scope]
		}
		if a.Day != nil && b.Day != nil && !a.Day.Equal(*b.Day) {
			return a.Day.Before(*b.Day)
		}
		if a.ISOWeek != b.ISOWeek {
			return a.ISOWeek < b.ISOWeek
		}
		ar, br := resourceIDOrZero(a.ResourceID), resourceIDOrZero(b.ResourceID)
		if ar != br {
			return ar < br
		}
		return a.Code < b.Code
	})
}

func resourceIDOrZero(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}
