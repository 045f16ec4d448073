// Package postfill implements the three Post-Fill Repair passes of spec
// §4.6. These passes are explicitly scoped to seed/preview tooling, not
// the main engine path: they add shifts to under-filled schedules rather
// than validating or scoring an existing plan.
package postfill

import (
	"sort"
	"time"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// roleAssignPriority mirrors the heuristic package's tie-break order
// for "role priority" in the daily-staffing pass.
var roleAssignPriority = map[model.Role]int{
	model.RoleCook:             0,
	model.RoleReliefCook:       1,
	model.RoleKitchenAssistant: 2,
	model.RoleApprentice:       3,
	model.RolePotWasher:        4,
}

// Apply runs the three ordered passes over entries and returns the
// repaired list.
func Apply(ctx model.SchedulingContext, entries []model.Assignment) ([]model.Assignment, error) {
	days, err := monthDateRange(ctx.Month)
	if err != nil {
		return nil, err
	}

	out := make([]model.Assignment, len(entries))
	copy(out, entries)

	out = ensureContractHours(ctx, days, out)
	out = ensureDailyStaffing(ctx, days, out)
	out = enforcePotWasherPairing(ctx, days, out)

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out, nil
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

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

// indexedEntries indexes entries by day then resource id, storing the
// entry's position in the backing slice rather than a pointer to it:
// repeated append() calls on that slice can reallocate its backing
// array, which would silently strand a *model.Assignment pointing at
// the old one. An index into the current slice stays valid regardless.
type indexedEntries map[string]map[int]int

func indexByDayAndResource(entries []model.Assignment) indexedEntries {
	idx := make(indexedEntries)
	for i, e := range entries {
		key := dayKey(e.Date)
		if idx[key] == nil {
			idx[key] = make(map[int]int)
		}
		idx[key][e.ResourceID] = i
	}
	return idx
}

// ensureContractHours implements §4.6 pass 1.
func ensureContractHours(ctx model.SchedulingContext, days []time.Time, entries []model.Assignment) []model.Assignment {
	idx := indexByDayAndResource(entries)
	workingDayCount := 0
	for _, d := range days {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			workingDayCount++
		}
	}

	for _, r := range ctx.Resources {
		actual := actualHours(ctx, r, days, entries, idx)

		target := float64(workingDayCount) * model.StandardWorkdayHours
		if r.MonthlyTargetHours != nil && *r.MonthlyTargetHours > target {
			target = *r.MonthlyTargetHours
		}

		for actual < target {
			day, shiftCode, ok := bestFreeDayAndShift(ctx, r, days, entries, idx)
			if !ok {
				break
			}
			shift, _ := ctx.Shifts.ByCode(shiftCode)
			code := shiftCode
			entries = append(entries, model.Assignment{ResourceID: r.ID, Date: day, ShiftCode: &code})
			key := dayKey(day)
			if idx[key] == nil {
				idx[key] = make(map[int]int)
			}
			idx[key][r.ID] = len(entries) - 1
			actual += shift.Hours
		}
	}
	return entries
}

func actualHours(ctx model.SchedulingContext, r model.Resource, days []time.Time, entries []model.Assignment, idx indexedEntries) float64 {
	total := 0.0
	for _, d := range days {
		i, ok := idx[dayKey(d)][r.ID]
		if !ok {
			continue
		}
		e := entries[i]
		if e.ShiftCode != nil {
			if s, ok := ctx.Shifts.ByCode(*e.ShiftCode); ok {
				total += s.Hours
			}
			continue
		}
		if e.AbsenceType != nil {
			switch *e.AbsenceType {
			case model.AbsenceSickLeave:
				total += model.StandardWorkdayHours
			case model.AbsenceVacation:
				if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
					total -= model.StandardWorkdayHours
				}
			}
		}
	}
	return total
}

// bestFreeDayAndShift picks the first still-free, available working day
// and the longest role-allowed, non-undesired shift for it.
func bestFreeDayAndShift(ctx model.SchedulingContext, r model.Resource, days []time.Time, entries []model.Assignment, idx indexedEntries) (time.Time, int, bool) {
	for _, d := range days {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if !r.Availability.Available(d.Weekday()) {
			continue
		}
		if _, absent := r.AbsenceOn(d); absent {
			continue
		}
		if i, ok := idx[dayKey(d)][r.ID]; ok && entries[i].IsWorkDay() {
			continue
		}

		code, ok := longestAllowedShift(ctx, r)
		if !ok {
			continue
		}
		return d, code, true
	}
	return time.Time{}, 0, false
}

func longestAllowedShift(ctx model.SchedulingContext, r model.Resource) (int, bool) {
	best := -1
	bestHours := -1.0
	for _, code := range ctx.Shifts.RoleAllowed[r.Role] {
		if r.IsUndesired(code) {
			continue
		}
		shift, ok := ctx.Shifts.ByCode(code)
		if !ok {
			continue
		}
		if shift.Hours > bestHours {
			bestHours = shift.Hours
			best = code
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// ensureDailyStaffing implements §4.6 pass 2.
func ensureDailyStaffing(ctx model.SchedulingContext, days []time.Time, entries []model.Assignment) []model.Assignment {
	idx := indexByDayAndResource(entries)

	for _, d := range days {
		key := dayKey(d)
		working := 0
		for _, i := range idx[key] {
			if entries[i].IsWorkDay() {
				working++
			}
		}

		for working < ctx.Rules.Shifts.MinimumDailyStaff {
			candidate, code, ok := nextStaffingCandidate(ctx, days, d, entries, idx)
			if !ok {
				break
			}
			c := code
			entries = append(entries, model.Assignment{ResourceID: candidate.ID, Date: d, ShiftCode: &c})
			if idx[key] == nil {
				idx[key] = make(map[int]int)
			}
			idx[key][candidate.ID] = len(entries) - 1
			working++
		}
	}
	return entries
}

// nextStaffingCandidate orders eligible resources by lowest monthly
// hours first, then role priority, then id (§4.6).
func nextStaffingCandidate(ctx model.SchedulingContext, days []time.Time, day time.Time, entries []model.Assignment, idx indexedEntries) (model.Resource, int, bool) {
	type scored struct {
		resource model.Resource
		hours    float64
	}
	dayEntries := idx[dayKey(day)]
	var pool []scored
	for _, r := range ctx.Resources {
		if i, ok := dayEntries[r.ID]; ok && entries[i].IsWorkDay() {
			continue
		}
		if _, absent := r.AbsenceOn(day); absent {
			continue
		}
		if !r.Availability.Available(day.Weekday()) {
			continue
		}
		pool = append(pool, scored{resource: r, hours: actualHours(ctx, r, days, entries, idx)})
	}
	if len(pool) == 0 {
		return model.Resource{}, 0, false
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].hours != pool[j].hours {
			return pool[i].hours < pool[j].hours
		}
		pi, pj := roleAssignPriority[pool[i].resource.Role], roleAssignPriority[pool[j].resource.Role]
		if pi != pj {
			return pi < pj
		}
		return pool[i].resource.ID < pool[j].resource.ID
	})

	chosen := pool[0].resource
	code, ok := longestAllowedShift(ctx, chosen)
	if !ok {
		return model.Resource{}, 0, false
	}
	return chosen, code, true
}

// enforcePotWasherPairing implements §4.6 pass 3.
func enforcePotWasherPairing(ctx model.SchedulingContext, days []time.Time, entries []model.Assignment) []model.Assignment {
	idx := indexByDayAndResource(entries)
	earlyTurn := true

	for _, d := range days {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		key := dayKey(d)

		var potWasherIdx []int
		for _, r := range ctx.Resources {
			if r.Role != model.RolePotWasher {
				continue
			}
			if i, ok := idx[key][r.ID]; ok && entries[i].IsWorkDay() {
				potWasherIdx = append(potWasherIdx, i)
			}
		}
		if len(potWasherIdx) != 1 {
			continue
		}

		var second model.Resource
		found := false
		for _, r := range ctx.Resources {
			if r.Role != model.RolePotWasher {
				continue
			}
			if i, ok := idx[key][r.ID]; ok && entries[i].IsWorkDay() {
				continue
			}
			if _, absent := r.AbsenceOn(d); absent {
				continue
			}
			if !r.Availability.Available(d.Weekday()) {
				continue
			}
			second = r
			found = true
			break
		}
		if !found {
			continue
		}

		family := model.PotWasherLateFamily
		otherFamily := model.PotWasherEarlyFamily
		if earlyTurn {
			family, otherFamily = otherFamily, family
		}
		earlyTurn = !earlyTurn

		firstFamily, secondFamily := otherFamily, family
		if entryInFamily(ctx, entries[potWasherIdx[0]], firstFamily) {
			firstFamily, secondFamily = secondFamily, firstFamily
		}
		assignFamily(&entries[potWasherIdx[0]], secondFamily)

		code := firstFamily[0]
		entries = append(entries, model.Assignment{ResourceID: second.ID, Date: d, ShiftCode: &code})
		idx[key][second.ID] = len(entries) - 1
	}
	return entries
}

func entryInFamily(ctx model.SchedulingContext, e model.Assignment, family []int) bool {
	if e.ShiftCode == nil {
		return false
	}
	base := ctx.Shifts.BaseOf(*e.ShiftCode)
	for _, code := range family {
		if code == base {
			return true
		}
	}
	return false
}

func assignFamily(e *model.Assignment, family []int) {
	if len(family) == 0 {
		return
	}
	code := family[0]
	e.ShiftCode = &code
}
