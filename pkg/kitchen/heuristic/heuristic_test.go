package heuristic

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

func catalogWithOnlyCode(code int, hours float64) model.ShiftCatalog {
	return model.ShiftCatalog{
		Shifts:      []model.Shift{{Code: code, Hours: hours}},
		RoleAllowed: map[model.Role][]int{model.RoleCook: {code}},
	}
}

// TestScoreCandidatePenalizesPrimeShiftOverBase exercises the §4.3/§4.4
// prime-shift discouragement term directly: with every other scoring
// input held equal, a prime code (11) must score worse (higher, since
// lower is better) than its base code (1) by exactly the 30-point
// penalty, never the reverse.
func TestScoreCandidatePenalizesPrimeShiftOverBase(t *testing.T) {
	ctx := model.SchedulingContext{
		Month:  "2024-11",
		Shifts: model.DefaultShiftCatalog(),
		Rules:  model.DefaultRuleSet(),
	}
	r := model.Resource{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()}
	d := time.Date(2024, time.November, 4, 0, 0, 0, 0, time.UTC)

	baseScore, blocked := scoreCandidate(ctx, d, map[int]*resourceState{1: newResourceState(r)},
		&dayRunState{day: d, assigned: map[int]int{}, roleCounts: map[model.RoleGroup]int{}}, r, 1)
	require.False(t, blocked)

	primeScore, blocked := scoreCandidate(ctx, d, map[int]*resourceState{1: newResourceState(r)},
		&dayRunState{day: d, assigned: map[int]int{}, roleCounts: map[model.RoleGroup]int{}}, r, 11)
	require.False(t, blocked)

	assert.InDelta(t, baseScore+30, primeScore, 0.001, "prime code must score worse than its base by the 30-point discouragement")
}

// Scenario A: one fully available cook against default minimum staffing
// yields a complete 30-day grid (one record per day, whether worked or
// rested) and never clears the 7-per-day minimum alone.
func TestRunStaffingShortfallScenario(t *testing.T) {
	ctx := model.SchedulingContext{
		Month: "2024-11",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
		},
		Shifts: catalogWithOnlyCode(1, 9.25),
		Rules:  model.DefaultRuleSet(),
	}

	entries, err := Run(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 30)

	byDay := make(map[string]int)
	for _, e := range entries {
		if e.IsWorkDay() {
			byDay[e.Date.Format("2006-01-02")]++
		}
	}
	for _, count := range byDay {
		assert.Less(t, count, ctx.Rules.Shifts.MinimumDailyStaff)
	}
}

// Scenario C: a single cook with only a 12h shift available must not
// exceed 4 working days in any ISO week (5*12=60 > 50h cap).
func TestRunWeeklyOvertimePrevented(t *testing.T) {
	rules := model.DefaultRuleSet()
	rules.Shifts.MinimumDailyStaff = 1

	ctx := model.SchedulingContext{
		Month: "2024-11",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
		},
		Shifts: catalogWithOnlyCode(4, 12.0),
		Rules:  rules,
	}

	entries, err := Run(ctx)
	require.NoError(t, err)

	byWeek := make(map[isoWeekKey]int)
	for _, e := range entries {
		if !e.IsWorkDay() {
			continue
		}
		byWeek[isoWeekOf(e.Date)]++
	}
	for _, count := range byWeek {
		assert.LessOrEqual(t, count, 4)
	}
}

// Scenario E: a resource available every day of a 30-day month ends up
// with at least one pair of consecutive rest dates.
func TestRunMandatoryRestBlock(t *testing.T) {
	ctx := model.SchedulingContext{
		Month: "2024-11",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
		},
		Shifts: model.DefaultShiftCatalog(),
		Rules:  model.DefaultRuleSet(),
	}

	entries, err := Run(ctx)
	require.NoError(t, err)

	restDays := make(map[string]bool)
	for _, e := range entries {
		if e.IsRestDay() {
			restDays[e.Date.Format("2006-01-02")] = true
		}
	}

	hasConsecutivePair := false
	for d := 1; d < 30; d++ {
		first := time.Date(2024, time.November, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		next := time.Date(2024, time.November, d+1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		if restDays[first] && restDays[next] {
			hasConsecutivePair = true
			break
		}
	}
	assert.True(t, hasConsecutivePair)
}

func TestRunEveryResourceDayPairCovered(t *testing.T) {
	ctx := model.SchedulingContext{
		Month: "2024-02",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
			{ID: 2, Role: model.RoleKitchenAssistant, Availability: model.FullWeek()},
		},
		Shifts: model.DefaultShiftCatalog(),
		Rules:  model.DefaultRuleSet(),
	}

	entries, err := Run(ctx)
	require.NoError(t, err)

	// 2024 is a leap year: 29 days x 2 resources, one entry per pair.
	seen := make(map[string]int)
	for _, e := range entries {
		key := e.Date.Format("2006-01-02") + "|" + strconv.Itoa(e.ResourceID)
		seen[key]++
	}
	assert.Len(t, seen, 58)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestRunAbsentResourceProducesNoShiftAssignments(t *testing.T) {
	start := time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.November, 30, 0, 0, 0, 0, time.UTC)

	ctx := model.SchedulingContext{
		Month: "2024-11",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek(),
				Absences: []model.Absence{{Type: model.AbsenceVacation, Start: start, End: end}}},
			{ID: 2, Role: model.RoleCook, Availability: model.FullWeek()},
		},
		Shifts: model.DefaultShiftCatalog(),
		Rules:  model.DefaultRuleSet(),
	}

	entries, err := Run(ctx)
	require.NoError(t, err)

	for _, e := range entries {
		if e.ResourceID == 1 {
			assert.False(t, e.IsWorkDay())
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	ctx := model.SchedulingContext{
		Month: "2024-11",
		Resources: []model.Resource{
			{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
			{ID: 2, Role: model.RoleKitchenAssistant, Availability: model.FullWeek()},
			{ID: 3, Role: model.RolePotWasher, Availability: model.FullWeek()},
		},
		Shifts: model.DefaultShiftCatalog(),
		Rules:  model.DefaultRuleSet(),
	}

	first, err := Run(ctx)
	require.NoError(t, err)
	second, err := Run(ctx)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ResourceID, second[i].ResourceID)
		assert.Equal(t, first[i].Date, second[i].Date)
		if first[i].ShiftCode != nil {
			require.NotNil(t, second[i].ShiftCode)
			assert.Equal(t, *first[i].ShiftCode, *second[i].ShiftCode)
		}
	}
}
