package postfill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

func day(d int) time.Time {
	return time.Date(2024, time.November, d, 0, 0, 0, 0, time.UTC)
}

func baseContext(resources ...model.Resource) model.SchedulingContext {
	rules := model.DefaultRuleSet()
	rules.Shifts.MinimumDailyStaff = 1
	return model.SchedulingContext{
		Month:     "2024-11",
		Resources: resources,
		Shifts:    model.DefaultShiftCatalog(),
		Rules:     rules,
	}
}

func TestEnsureContractHoursTopsUpShortResource(t *testing.T) {
	target := 100.0
	r := model.Resource{ID: 1, Role: model.RoleCook, Availability: model.FullWeek(), MonthlyTargetHours: &target}
	ctx := baseContext(r)

	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	out := ensureContractHours(ctx, days, nil)

	idx := indexByDayAndResource(out)
	actual := actualHours(ctx, r, days, out, idx)
	assert.GreaterOrEqual(t, actual, target)
}

func TestActualHoursCreditsSickLeaveAndDebitsVacation(t *testing.T) {
	target := 0.0
	r := model.Resource{ID: 1, Role: model.RoleCook, Availability: model.FullWeek(), MonthlyTargetHours: &target}
	ctx := baseContext(r)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	sick := model.AbsenceSickLeave
	vacation := model.AbsenceVacation
	entries := []model.Assignment{
		{ResourceID: 1, Date: day(4), AbsenceType: &sick},
		{ResourceID: 1, Date: day(5), AbsenceType: &vacation},
	}

	idx := indexByDayAndResource(entries)
	total := actualHours(ctx, r, days, entries, idx)
	assert.InDelta(t, model.StandardWorkdayHours-model.StandardWorkdayHours, total, 0.001)
}

func TestBestFreeDayAndShiftSkipsWeekendsAbsencesAndOccupiedDays(t *testing.T) {
	r := model.Resource{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()}
	ctx := baseContext(r)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	code := 1
	entries := []model.Assignment{
		{ResourceID: 1, Date: day(1), ShiftCode: &code}, // 2024-11-01 is a Friday, already occupied
	}
	idx := indexByDayAndResource(entries)

	d, shiftCode, ok := bestFreeDayAndShift(ctx, r, days, entries, idx)
	require.True(t, ok)
	assert.NotEqual(t, day(1), d)
	assert.NotEqual(t, time.Saturday, d.Weekday())
	assert.NotEqual(t, time.Sunday, d.Weekday())
	shift, found := ctx.Shifts.ByCode(shiftCode)
	require.True(t, found)
	assert.Greater(t, shift.Hours, 0.0)
}

func TestLongestAllowedShiftSkipsUndesired(t *testing.T) {
	ctx := baseContext()
	r := model.Resource{ID: 1, Role: model.RoleCook, UndesiredShiftCodes: []int{4}}

	code, ok := longestAllowedShift(ctx, r)
	require.True(t, ok)
	assert.NotEqual(t, 4, code) // code 4 (12h, the longest) is undesired, so skipped
}

func TestEnsureDailyStaffingAddsResourcesUntilMinimumMet(t *testing.T) {
	resources := []model.Resource{
		{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
		{ID: 2, Role: model.RoleCook, Availability: model.FullWeek()},
		{ID: 3, Role: model.RoleKitchenAssistant, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	ctx.Rules.Shifts.MinimumDailyStaff = 3
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	out := ensureDailyStaffing(ctx, days, nil)

	idx := indexByDayAndResource(out)
	for _, d := range days {
		working := 0
		for _, i := range idx[dayKey(d)] {
			if out[i].IsWorkDay() {
				working++
			}
		}
		assert.GreaterOrEqual(t, working, 3, "day %s understaffed", d)
	}
}

func TestNextStaffingCandidatePrefersLowestHoursThenRolePriority(t *testing.T) {
	resources := []model.Resource{
		{ID: 1, Role: model.RolePotWasher, Availability: model.FullWeek()},
		{ID: 2, Role: model.RoleCook, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	candidate, _, ok := nextStaffingCandidate(ctx, days, day(4), nil, nil)
	require.True(t, ok)
	assert.Equal(t, 2, candidate.ID) // cook outranks pot_washer when hours tie
}

// TestNextStaffingCandidatePrefersLowestHoursOverRolePriority exercises the
// hours criterion itself (§4.6 pass 2 "lowest monthly hours first"): a cook
// already carrying a full month of shifts must lose to a pot washer with
// zero accumulated hours, even though role priority alone would favor cooks.
func TestNextStaffingCandidatePrefersLowestHoursOverRolePriority(t *testing.T) {
	resources := []model.Resource{
		{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()},
		{ID: 2, Role: model.RolePotWasher, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	code := 4 // 12h shift
	var entries []model.Assignment
	for _, d := range days {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if d.Equal(day(4)) {
			continue // leave the target day open on both resources
		}
		entries = append(entries, model.Assignment{ResourceID: 1, Date: d, ShiftCode: &code})
	}
	idx := indexByDayAndResource(entries)

	candidate, _, ok := nextStaffingCandidate(ctx, days, day(4), entries, idx)
	require.True(t, ok)
	assert.Equal(t, 2, candidate.ID, "pot washer with zero hours must outrank the heavily scheduled cook")
}

func TestNextStaffingCandidateExcludesAbsentAndUnavailable(t *testing.T) {
	unavailable := model.WeekAvailability{}
	resources := []model.Resource{
		{ID: 1, Role: model.RoleCook, Availability: unavailable},
		{ID: 2, Role: model.RoleCook, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	candidate, _, ok := nextStaffingCandidate(ctx, days, day(4), nil, nil)
	require.True(t, ok)
	assert.Equal(t, 2, candidate.ID)
}

func TestEnforcePotWasherPairingAddsSecondWasherAndAlternatesFamily(t *testing.T) {
	resources := []model.Resource{
		{ID: 1, Role: model.RolePotWasher, Availability: model.FullWeek()},
		{ID: 2, Role: model.RolePotWasher, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	code := 8
	entries := []model.Assignment{
		{ResourceID: 1, Date: day(4), ShiftCode: &code},
	}

	out := enforcePotWasherPairing(ctx, days, entries)

	idx := indexByDayAndResource(out)
	i1, ok1 := idx[dayKey(day(4))][1]
	i2, ok2 := idx[dayKey(day(4))][2]
	require.True(t, ok1)
	require.True(t, ok2)
	require.NotNil(t, out[i1].ShiftCode)
	require.NotNil(t, out[i2].ShiftCode)

	family1 := ctx.Shifts.BaseOf(*out[i1].ShiftCode)
	family2 := ctx.Shifts.BaseOf(*out[i2].ShiftCode)
	assert.NotEqual(t, family1, family2, "paired pot washers must cover opposite families")
}

func TestEnforcePotWasherPairingSkipsWeekendsAndAlreadyPairedDays(t *testing.T) {
	resources := []model.Resource{
		{ID: 1, Role: model.RolePotWasher, Availability: model.FullWeek()},
		{ID: 2, Role: model.RolePotWasher, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	days, err := monthDateRange(ctx.Month)
	require.NoError(t, err)

	earlyCode, lateCode := 8, 10
	entries := []model.Assignment{
		{ResourceID: 1, Date: day(4), ShiftCode: &earlyCode},
		{ResourceID: 2, Date: day(4), ShiftCode: &lateCode},
	}

	out := enforcePotWasherPairing(ctx, days, entries)
	assert.Len(t, out, len(entries)) // already paired on 2024-11-04, nothing added
}

func TestApplyFullPipelineProducesSortedDeterministicOutput(t *testing.T) {
	target := 40.0
	resources := []model.Resource{
		{ID: 2, Role: model.RoleCook, Availability: model.FullWeek(), MonthlyTargetHours: &target},
		{ID: 1, Role: model.RolePotWasher, Availability: model.FullWeek()},
	}
	ctx := baseContext(resources...)
	ctx.Rules.Shifts.MinimumDailyStaff = 1

	out, err := Apply(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	for i := 1; i < len(out); i++ {
		if out[i-1].Date.Equal(out[i].Date) {
			assert.Less(t, out[i-1].ResourceID, out[i].ResourceID)
		} else {
			assert.True(t, out[i-1].Date.Before(out[i].Date))
		}
	}
}

func TestApplyRejectsMalformedMonth(t *testing.T) {
	ctx := baseContext(model.Resource{ID: 1, Role: model.RoleCook, Availability: model.FullWeek()})
	ctx.Month = "bogus"

	out, err := Apply(ctx, nil)
	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestMonthDateRangeCoversWholeMonth(t *testing.T) {
	days, err := monthDateRange("2024-02")
	require.NoError(t, err)
	assert.Len(t, days, 29) // 2024 is a leap year
	assert.Equal(t, 1, days[0].Day())
	assert.Equal(t, 29, days[len(days)-1].Day())
}
