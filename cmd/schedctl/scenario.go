package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forextrader4711/kitchen-scheduler/internal/config"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// scenarioDoc is the on-disk fixture format cmd/schedctl reads: a month
// plus a resource list. The shift catalog is always
// model.DefaultShiftCatalog; rules come from internal/config, read from
// rulesPath when set and from the embedded default otherwise.
type scenarioDoc struct {
	Month     string           `yaml:"month"`
	Resources []resourceDoc    `yaml:"resources"`
	RulesPath string           `yaml:"rulesPath,omitempty"`
}

type absenceDoc struct {
	Type  string `yaml:"type"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type resourceDoc struct {
	ID                  int          `yaml:"id"`
	Role                string       `yaml:"role"`
	Availability        []bool       `yaml:"availability,omitempty"`
	PreferredShiftCodes []int        `yaml:"preferredShiftCodes,omitempty"`
	UndesiredShiftCodes []int        `yaml:"undesiredShiftCodes,omitempty"`
	Absences            []absenceDoc `yaml:"absences,omitempty"`
	MonthlyTargetHours  *float64     `yaml:"monthlyTargetHours,omitempty"`
	Relief              bool         `yaml:"relief,omitempty"`
}

func loadScenario(path string) (model.SchedulingContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SchedulingContext{}, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var doc scenarioDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.SchedulingContext{}, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	resources := make([]model.Resource, len(doc.Resources))
	for i, rd := range doc.Resources {
		availability := model.FullWeek()
		if len(rd.Availability) == 7 {
			for d := 0; d < 7; d++ {
				availability[d] = rd.Availability[d]
			}
		}

		absences := make([]model.Absence, len(rd.Absences))
		for j, ad := range rd.Absences {
			start, err := time.Parse("2006-01-02", ad.Start)
			if err != nil {
				return model.SchedulingContext{}, fmt.Errorf("resource %d absence %d: %w", rd.ID, j, err)
			}
			end, err := time.Parse("2006-01-02", ad.End)
			if err != nil {
				return model.SchedulingContext{}, fmt.Errorf("resource %d absence %d: %w", rd.ID, j, err)
			}
			absences[j] = model.Absence{Type: model.AbsenceType(ad.Type), Start: start, End: end}
		}

		resources[i] = model.Resource{
			ID:                  rd.ID,
			Role:                model.Role(rd.Role),
			Availability:        availability,
			PreferredShiftCodes: rd.PreferredShiftCodes,
			UndesiredShiftCodes: rd.UndesiredShiftCodes,
			Absences:            absences,
			MonthlyTargetHours:  rd.MonthlyTargetHours,
			Relief:              rd.Relief,
		}
	}

	rules, err := config.LoadActiveRules(doc.RulesPath, doc.Month)
	if err != nil {
		return model.SchedulingContext{}, fmt.Errorf("failed to load rules: %w", err)
	}

	return model.SchedulingContext{
		Month:     doc.Month,
		Resources: resources,
		Shifts:    model.DefaultShiftCatalog(),
		Rules:     rules,
	}, nil
}
