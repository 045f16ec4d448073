package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleCook.IsValid())
	assert.True(t, RolePotWasher.IsValid())
	assert.False(t, Role("head_chef").IsValid())
}

func TestGroupOf(t *testing.T) {
	assert.Equal(t, RoleGroupCooks, GroupOf(RoleCook))
	assert.Equal(t, RoleGroupCooks, GroupOf(RoleReliefCook))
	assert.Equal(t, RoleGroupKitchenAssistants, GroupOf(RoleKitchenAssistant))
	assert.Equal(t, RoleGroupPotWashers, GroupOf(RolePotWasher))
	assert.Equal(t, RoleGroupApprentices, GroupOf(RoleApprentice))
}

func TestAbsenceContains(t *testing.T) {
	a := Absence{
		Start: date(2024, 11, 5),
		End:   date(2024, 11, 9),
	}
	assert.True(t, a.Contains(date(2024, 11, 5)))
	assert.True(t, a.Contains(date(2024, 11, 9)))
	assert.True(t, a.Contains(date(2024, 11, 7)))
	assert.False(t, a.Contains(date(2024, 11, 4)))
	assert.False(t, a.Contains(date(2024, 11, 10)))
}

func TestWeekAvailability(t *testing.T) {
	w := FullWeek()
	for d := time.Sunday; d <= time.Saturday; d++ {
		assert.True(t, w.Available(d))
	}

	w[time.Sunday] = false
	assert.False(t, w.Available(time.Sunday))
	assert.True(t, w.Available(time.Monday))
}

func TestResourcePreferenceChecks(t *testing.T) {
	r := Resource{
		ID:                  1,
		PreferredShiftCodes: []int{1, 8},
		UndesiredShiftCodes: []int{10},
	}
	assert.True(t, r.IsPreferred(1))
	assert.False(t, r.IsPreferred(4))
	assert.True(t, r.IsUndesired(10))
	assert.False(t, r.IsUndesired(1))
}

func TestResourceAbsenceOn(t *testing.T) {
	r := Resource{
		ID: 1,
		Absences: []Absence{
			{Type: AbsenceVacation, Start: date(2024, 11, 1), End: date(2024, 11, 3)},
		},
	}
	a, ok := r.AbsenceOn(date(2024, 11, 2))
	require.True(t, ok)
	assert.Equal(t, AbsenceVacation, a.Type)

	_, ok = r.AbsenceOn(date(2024, 11, 10))
	assert.False(t, ok)
}

func TestResourceValidateRejectsUnknownRole(t *testing.T) {
	r := Resource{ID: 1, Role: "head_chef"}
	assert.Error(t, r.Validate())
}

func TestResourceValidateRejectsOverlappingAbsences(t *testing.T) {
	r := Resource{
		ID:   1,
		Role: RoleCook,
		Absences: []Absence{
			{Start: date(2024, 11, 1), End: date(2024, 11, 5)},
			{Start: date(2024, 11, 4), End: date(2024, 11, 8)},
		},
	}
	assert.Error(t, r.Validate())
}

func TestResourceValidateRejectsNegativeTargetHours(t *testing.T) {
	negative := -1.0
	r := Resource{ID: 1, Role: RoleCook, MonthlyTargetHours: &negative}
	assert.Error(t, r.Validate())
}

func TestResourceValidateAccepts(t *testing.T) {
	r := Resource{ID: 1, Role: RoleCook, Availability: FullWeek()}
	assert.NoError(t, r.Validate())
}

func TestShiftCatalogLookups(t *testing.T) {
	c := DefaultShiftCatalog()

	s, ok := c.ByCode(1)
	require.True(t, ok)
	assert.Equal(t, 9.25, s.Hours)

	assert.Equal(t, 1, c.BaseOf(11))
	assert.Equal(t, 10, c.BaseOf(10))

	prime, ok := c.PrimeVariant(8)
	require.True(t, ok)
	assert.Equal(t, 18, prime)

	_, ok = c.PrimeVariant(4)
	assert.False(t, ok)

	assert.True(t, c.IsAllowedForRole(RoleCook, 4))
	assert.False(t, c.IsAllowedForRole(RolePotWasher, 1))
}

func TestShiftCatalogValidate(t *testing.T) {
	assert.NoError(t, DefaultShiftCatalog().Validate())

	empty := ShiftCatalog{}
	assert.Error(t, empty.Validate())

	brokenPrime := ShiftCatalog{
		Shifts:  []Shift{{Code: 1, Hours: 9}, {Code: 11, Hours: 9}},
		PrimeOf: map[int]int{11: 1},
	}
	assert.Error(t, brokenPrime.Validate())
}

func TestAssignmentClassification(t *testing.T) {
	code := 1
	absence := AbsenceVacation

	work := Assignment{ShiftCode: &code}
	assert.True(t, work.IsWorkDay())
	assert.False(t, work.IsRestDay())

	onLeave := Assignment{AbsenceType: &absence}
	assert.False(t, onLeave.IsWorkDay())
	assert.False(t, onLeave.IsRestDay())

	rest := Assignment{}
	assert.False(t, rest.IsWorkDay())
	assert.True(t, rest.IsRestDay())
}

func TestShiftRulesCompositionForAndPrimeAllowed(t *testing.T) {
	rules := DefaultRuleSet()

	_, ok := rules.Shifts.CompositionFor(RoleGroupCooks)
	assert.True(t, ok)
	_, ok = rules.Shifts.CompositionFor(RoleGroup("unknown"))
	assert.False(t, ok)

	assert.False(t, rules.Shifts.PrimeAllowedFor(RoleApprentice))
	assert.True(t, rules.Shifts.PrimeAllowedFor(RoleCook))
}

func TestPrimeAllowedForExclusionWinsOverAllowance(t *testing.T) {
	shiftRules := ShiftRules{
		PrimeShiftsAllowedFor:  []Role{RoleCook},
		PrimeShiftsExcludedFor: []Role{RoleCook},
	}
	assert.False(t, shiftRules.PrimeAllowedFor(RoleCook))
}

func TestSchedulingContextValidate(t *testing.T) {
	ctx := SchedulingContext{
		Month:     "2024-11",
		Shifts:    DefaultShiftCatalog(),
		Resources: []Resource{{ID: 1, Role: RoleCook, Availability: FullWeek()}},
	}
	assert.NoError(t, ctx.Validate())

	ctx.Month = "not-a-month"
	assert.Error(t, ctx.Validate())

	ctx.Month = "2024-11"
	ctx.Resources = nil
	assert.Error(t, ctx.Validate())
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
