// Package relax implements the Prime-Shift Relaxation post-pass (spec
// §4.5): converting shifts to their shorter prime variant wherever a
// resource would otherwise run over its weekly or monthly hour bounds.
package relax

import (
	"sort"
	"time"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

const primeAdjustmentTag = " (prime adjustment)"

type isoWeekKey struct{ year, week int }

func isoWeekOf(day time.Time) isoWeekKey {
	y, w := day.ISOWeek()
	return isoWeekKey{year: y, week: w}
}

// conversion is a candidate assignment-to-prime-variant swap, ranked by
// how many hours it would shave off (§4.5 "largest hours-delta first").
type conversion struct {
	entryIndex int
	delta      float64
}

// Apply converts assignments to their prime shift variant wherever doing
// so is needed to bring a resource back under its weekly or monthly hour
// bound, greedily by largest hours-delta first. It is idempotent: an
// assignment already carrying the adjustment tag, or already on its
// prime variant, is never reconsidered.
func Apply(ctx model.SchedulingContext, entries []model.Assignment) []model.Assignment {
	out := make([]model.Assignment, len(entries))
	copy(out, entries)

	weeklyHours := make(map[int]map[isoWeekKey]float64)
	monthlyHours := make(map[int]float64)
	for i, e := range out {
		if e.ShiftCode == nil {
			continue
		}
		shift, ok := ctx.Shifts.ByCode(*e.ShiftCode)
		if !ok {
			continue
		}
		if weeklyHours[e.ResourceID] == nil {
			weeklyHours[e.ResourceID] = make(map[isoWeekKey]float64)
		}
		weeklyHours[e.ResourceID][isoWeekOf(e.Date)] += shift.Hours
		monthlyHours[e.ResourceID] += shift.Hours
		_ = i
	}

	maxWeekly := ctx.Rules.WorkingTime.MaxHoursPerWeek
	targetOf := func(resourceID int) (float64, bool) {
		for _, r := range ctx.Resources {
			if r.ID == resourceID {
				if r.MonthlyTargetHours != nil {
					return *r.MonthlyTargetHours, true
				}
			}
		}
		return 0, false
	}

	for {
		var candidates []conversion
		for i, e := range out {
			if e.ShiftCode == nil {
				continue
			}
			if alreadyAdjusted(e) {
				continue
			}
			base, prime, ok := primePair(ctx, *e.ShiftCode)
			if !ok {
				continue
			}

			wk := isoWeekOf(e.Date)
			overWeekly := weeklyHours[e.ResourceID][wk] > maxWeekly
			overMonthly := false
			if target, has := targetOf(e.ResourceID); has {
				overMonthly = monthlyHours[e.ResourceID] > target+2
			}
			if !overWeekly && !overMonthly {
				continue
			}

			delta := base.Hours - prime.Hours
			if delta <= 0 {
				continue
			}
			candidates = append(candidates, conversion{entryIndex: i, delta: delta})
		}
		if len(candidates) == 0 {
			break
		}

		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].delta > candidates[j].delta })
		top := candidates[0]
		e := &out[top.entryIndex]
		_, prime, _ := primePair(ctx, *e.ShiftCode)

		wk := isoWeekOf(e.Date)
		weeklyHours[e.ResourceID][wk] -= top.delta
		monthlyHours[e.ResourceID] -= top.delta

		code := prime.Code
		e.ShiftCode = &code
		e.Comment += primeAdjustmentTag
	}

	return out
}

func alreadyAdjusted(e model.Assignment) bool {
	return len(e.Comment) >= len(primeAdjustmentTag) && e.Comment[len(e.Comment)-len(primeAdjustmentTag):] == primeAdjustmentTag
}

// primePair returns the (base, prime) shift pair for code, whichever
// side of the pair code currently is, and whether code has a prime
// variant to convert to at all.
func primePair(ctx model.SchedulingContext, code int) (base model.Shift, prime model.Shift, ok bool) {
	if _, isPrime := ctx.Shifts.PrimeOf[code]; isPrime {
		return model.Shift{}, model.Shift{}, false
	}
	primeCode, has := ctx.Shifts.PrimeVariant(code)
	if !has {
		return model.Shift{}, model.Shift{}, false
	}
	base, ok1 := ctx.Shifts.ByCode(code)
	prime, ok2 := ctx.Shifts.ByCode(primeCode)
	if !ok1 || !ok2 {
		return model.Shift{}, model.Shift{}, false
	}
	return base, prime, true
}
