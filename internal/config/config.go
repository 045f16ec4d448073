// Package config loads the kitchen scheduler's declarative RuleSet
// document: a YAML file validated with go-playground/validator, with a
// default shipped via embed.FS and optional RRULE-keyed seasonal
// overrides applied against the scheduled month (spec §6 "Rule
// configuration loader").
package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

//go:embed defaults/rules.yaml
var defaultsFS embed.FS

// roleCompositionDoc mirrors model.RoleComposition for YAML decoding.
type roleCompositionDoc struct {
	Group string `yaml:"group" validate:"required"`
	Min   *int   `yaml:"min,omitempty" validate:"omitempty,min=0"`
	Max   *int   `yaml:"max,omitempty" validate:"omitempty,min=0"`
}

type workingTimeDoc struct {
	MaxHoursPerWeek                    float64 `yaml:"maxHoursPerWeek" validate:"required,gt=0"`
	MaxWorkingDaysPerWeek              int     `yaml:"maxWorkingDaysPerWeek" validate:"required,gt=0,lte=7"`
	MaxConsecutiveWorkingDays          int     `yaml:"maxConsecutiveWorkingDays" validate:"required,gt=0"`
	RequiredConsecutiveDaysOffPerMonth int     `yaml:"requiredConsecutiveDaysOffPerMonth" validate:"gte=0"`
}

type shiftRulesDoc struct {
	MinimumDailyStaff      int                  `yaml:"minimumDailyStaff" validate:"required,gt=0"`
	Composition            []roleCompositionDoc `yaml:"composition" validate:"dive"`
	PrimeShiftsAllowedFor  []string             `yaml:"primeShiftsAllowedFor,omitempty"`
	PrimeShiftsExcludedFor []string             `yaml:"primeShiftsExcludedFor,omitempty"`
}

type vacationRulesDoc struct {
	MaxConcurrentVacations int `yaml:"maxConcurrentVacations" validate:"gte=0"`
	DesiredRestDays        int `yaml:"desiredRestDays" validate:"gte=0"`
}

// seasonalOverrideDoc replaces minimum_daily_staff for the whole of any
// month the RRULE occurs in at least once (§3/§6 leave override
// semantics unspecified for RuleSet).
type seasonalOverrideDoc struct {
	RRule             string `yaml:"rrule" validate:"required"`
	MinimumDailyStaff *int   `yaml:"minimumDailyStaff,omitempty" validate:"omitempty,gt=0"`
}

type ruleSetDoc struct {
	WorkingTime       workingTimeDoc        `yaml:"workingTime" validate:"required"`
	Shifts            shiftRulesDoc         `yaml:"shifts" validate:"required"`
	Vacations         vacationRulesDoc      `yaml:"vacations"`
	SeasonalOverrides []seasonalOverrideDoc `yaml:"seasonalOverrides,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadDefaultRules parses the rules document embedded at build time.
func LoadDefaultRules() (model.RuleSet, error) {
	data, err := defaultsFS.ReadFile("defaults/rules.yaml")
	if err != nil {
		return model.RuleSet{}, fmt.Errorf("failed to read embedded default rules: %w", err)
	}
	doc, err := parseAndValidate(data)
	if err != nil {
		return model.RuleSet{}, err
	}
	return doc.toRuleSet(), nil
}

// LoadActiveRules loads the rules document at path, falling back to the
// embedded default when path is empty, and applies any seasonal override
// whose RRULE occurs at least once during month ("YYYY-MM").
func LoadActiveRules(path, month string) (model.RuleSet, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = defaultsFS.ReadFile("defaults/rules.yaml")
		if err != nil {
			return model.RuleSet{}, fmt.Errorf("failed to read embedded default rules: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return model.RuleSet{}, fmt.Errorf("failed to read rules file: %w", err)
		}
	}

	doc, err := parseAndValidate(data)
	if err != nil {
		return model.RuleSet{}, err
	}

	ruleSet := doc.toRuleSet()
	if month == "" {
		return ruleSet, nil
	}

	monthStart, err := time.Parse("2006-01", month)
	if err != nil {
		return model.RuleSet{}, fmt.Errorf("malformed month %q: %w", month, err)
	}
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Hour)

	for _, override := range doc.SeasonalOverrides {
		rule, err := rrule.StrToRRule(override.RRule)
		if err != nil {
			return model.RuleSet{}, fmt.Errorf("invalid rrule %q: %w", override.RRule, err)
		}
		rule.DTStart(monthStart.AddDate(-1, 0, 0))
		if len(rule.Between(monthStart, monthEnd, true)) == 0 {
			continue
		}
		if override.MinimumDailyStaff != nil {
			ruleSet.Shifts.MinimumDailyStaff = *override.MinimumDailyStaff
		}
	}

	return ruleSet, nil
}

func parseAndValidate(data []byte) (ruleSetDoc, error) {
	var doc ruleSetDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ruleSetDoc{}, fmt.Errorf("failed to parse rules document: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return ruleSetDoc{}, fmt.Errorf("rules validation failed: %w", err)
	}
	for i, o := range doc.SeasonalOverrides {
		if _, err := rrule.StrToRRule(o.RRule); err != nil {
			return ruleSetDoc{}, fmt.Errorf("invalid rrule in seasonalOverrides[%d]: %w", i, err)
		}
	}
	return doc, nil
}

func (d ruleSetDoc) toRuleSet() model.RuleSet {
	composition := make([]model.RoleComposition, len(d.Shifts.Composition))
	for i, c := range d.Shifts.Composition {
		composition[i] = model.RoleComposition{Group: model.RoleGroup(c.Group), Min: c.Min, Max: c.Max}
	}

	return model.RuleSet{
		WorkingTime: model.WorkingTimeRules{
			MaxHoursPerWeek:                    d.WorkingTime.MaxHoursPerWeek,
			MaxWorkingDaysPerWeek:              d.WorkingTime.MaxWorkingDaysPerWeek,
			MaxConsecutiveWorkingDays:          d.WorkingTime.MaxConsecutiveWorkingDays,
			RequiredConsecutiveDaysOffPerMonth: d.WorkingTime.RequiredConsecutiveDaysOffPerMonth,
		},
		Shifts: model.ShiftRules{
			MinimumDailyStaff:      d.Shifts.MinimumDailyStaff,
			Composition:            composition,
			PrimeShiftsAllowedFor:  toRoles(d.Shifts.PrimeShiftsAllowedFor),
			PrimeShiftsExcludedFor: toRoles(d.Shifts.PrimeShiftsExcludedFor),
		},
		Vacations: model.VacationRules{
			MaxConcurrentVacations: d.Vacations.MaxConcurrentVacations,
			DesiredRestDays:        d.Vacations.DesiredRestDays,
		},
	}
}

func toRoles(raw []string) []model.Role {
	if len(raw) == 0 {
		return nil
	}
	out := make([]model.Role, len(raw))
	for i, r := range raw {
		out[i] = model.Role(r)
	}
	return out
}
