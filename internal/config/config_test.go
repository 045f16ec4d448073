package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

func TestLoadDefaultRulesMatchesEmbeddedDocument(t *testing.T) {
	rules, err := LoadDefaultRules()
	require.NoError(t, err)

	assert.Equal(t, 50.0, rules.WorkingTime.MaxHoursPerWeek)
	assert.Equal(t, 6, rules.WorkingTime.MaxWorkingDaysPerWeek)
	assert.Equal(t, 5, rules.WorkingTime.MaxConsecutiveWorkingDays)
	assert.Equal(t, 7, rules.Shifts.MinimumDailyStaff)
	assert.Equal(t, 4, rules.Vacations.MaxConcurrentVacations)
	assert.Equal(t, []model.Role{model.RoleApprentice}, rules.Shifts.PrimeShiftsExcludedFor)

	comp, ok := rules.Shifts.CompositionFor(model.RoleGroupCooks)
	require.True(t, ok)
	require.NotNil(t, comp.Min)
	assert.Equal(t, 2, *comp.Min)
}

func TestLoadActiveRulesAppliesSeasonalOverrideInDecember(t *testing.T) {
	rules, err := LoadActiveRules("", "2024-12")
	require.NoError(t, err)
	assert.Equal(t, 5, rules.Shifts.MinimumDailyStaff)
}

func TestLoadActiveRulesLeavesDefaultOutsideOverrideWindow(t *testing.T) {
	rules, err := LoadActiveRules("", "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 7, rules.Shifts.MinimumDailyStaff)
}

func TestLoadActiveRulesWithEmptyMonthSkipsOverrideEvaluation(t *testing.T) {
	rules, err := LoadActiveRules("", "")
	require.NoError(t, err)
	assert.Equal(t, 7, rules.Shifts.MinimumDailyStaff)
}

func TestLoadActiveRulesRejectsMalformedMonth(t *testing.T) {
	_, err := LoadActiveRules("", "not-a-month")
	assert.Error(t, err)
}

func TestLoadActiveRulesReadsCustomPath(t *testing.T) {
	doc := `
workingTime:
  maxHoursPerWeek: 40
  maxWorkingDaysPerWeek: 5
  maxConsecutiveWorkingDays: 4
  requiredConsecutiveDaysOffPerMonth: 2
shifts:
  minimumDailyStaff: 3
  composition:
    - group: cooks
      min: 1
vacations:
  maxConcurrentVacations: 2
  desiredRestDays: 2
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rules, err := LoadActiveRules(path, "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 40.0, rules.WorkingTime.MaxHoursPerWeek)
	assert.Equal(t, 3, rules.Shifts.MinimumDailyStaff)
}

func TestLoadActiveRulesRejectsMissingFile(t *testing.T) {
	_, err := LoadActiveRules(filepath.Join(t.TempDir(), "missing.yaml"), "2024-06")
	assert.Error(t, err)
}

func TestParseAndValidateRejectsMissingRequiredField(t *testing.T) {
	doc := `
workingTime:
  maxWorkingDaysPerWeek: 6
  maxConsecutiveWorkingDays: 5
shifts:
  minimumDailyStaff: 7
  composition: []
`
	_, err := parseAndValidate([]byte(doc))
	assert.Error(t, err)
}

func TestParseAndValidateRejectsInvalidRRule(t *testing.T) {
	doc := `
workingTime:
  maxHoursPerWeek: 50
  maxWorkingDaysPerWeek: 6
  maxConsecutiveWorkingDays: 5
shifts:
  minimumDailyStaff: 7
  composition:
    - group: cooks
      min: 1
seasonalOverrides:
  - rrule: "not a valid rrule"
    minimumDailyStaff: 3
`
	_, err := parseAndValidate([]byte(doc))
	assert.Error(t, err)
}

func TestToRuleSetCarriesRoleCompositionOrder(t *testing.T) {
	doc := ruleSetDoc{
		WorkingTime: workingTimeDoc{MaxHoursPerWeek: 50, MaxWorkingDaysPerWeek: 6, MaxConsecutiveWorkingDays: 5},
		Shifts: shiftRulesDoc{
			MinimumDailyStaff: 7,
			Composition: []roleCompositionDoc{
				{Group: "cooks"},
				{Group: "pot_washers"},
			},
		},
	}

	ruleSet := doc.toRuleSet()
	require.Len(t, ruleSet.Shifts.Composition, 2)
	assert.Equal(t, model.RoleGroupCooks, ruleSet.Shifts.Composition[0].Group)
	assert.Equal(t, model.RoleGroupPotWashers, ruleSet.Shifts.Composition[1].Group)
}
