package model

// DefaultShiftCatalog returns the reference shift catalog of §6: the
// seven default shifts and their prime associations (11->1, 18->8,
// 101->10), with the role-allowed map every role can draw from.
func DefaultShiftCatalog() ShiftCatalog {
	shifts := []Shift{
		{Code: 1, Description: "Early", Start: "07:00", End: "16:15", Hours: 9.25},
		{Code: 4, Description: "Long", Start: "07:15", End: "19:15", Hours: 12.00},
		{Code: 8, Description: "Mid", Start: "08:00", End: "17:15", Hours: 9.25},
		{Code: 10, Description: "Late", Start: "10:15", End: "19:30", Hours: 9.25},
		{Code: 11, Description: "Early (prime)", Start: "08:00", End: "16:15", Hours: 8.25},
		{Code: 18, Description: "Mid (prime)", Start: "09:00", End: "17:15", Hours: 8.25},
		{Code: 101, Description: "Late (prime)", Start: "11:15", End: "19:30", Hours: 8.25},
	}

	primeOf := map[int]int{
		11:  1,
		18:  8,
		101: 10,
	}

	allCodes := []int{1, 4, 8, 10, 11, 18, 101}
	roleAllowed := map[Role][]int{
		RoleCook:             allCodes,
		RoleReliefCook:       allCodes,
		RoleKitchenAssistant: allCodes,
		RolePotWasher:        {8, 18, 10, 101},
		RoleApprentice:       {1, 8, 11, 18},
	}

	return ShiftCatalog{Shifts: shifts, PrimeOf: primeOf, RoleAllowed: roleAllowed}
}

// DefaultRuleSet returns the §6 default rule snapshot.
func DefaultRuleSet() RuleSet {
	intp := func(v int) *int { return &v }

	return RuleSet{
		WorkingTime: WorkingTimeRules{
			MaxHoursPerWeek:                    50,
			MaxWorkingDaysPerWeek:              6,
			MaxConsecutiveWorkingDays:          5,
			RequiredConsecutiveDaysOffPerMonth: 2,
		},
		Shifts: ShiftRules{
			MinimumDailyStaff: 7,
			Composition: []RoleComposition{
				{Group: RoleGroupCooks, Min: intp(2)},
				{Group: RoleGroupKitchenAssistants, Min: intp(1)},
				{Group: RoleGroupPotWashers, Min: intp(1), Max: intp(2)},
				{Group: RoleGroupApprentices},
			},
			PrimeShiftsAllowedFor:  nil, // nil = all roles allowed, minus exclusions
			PrimeShiftsExcludedFor: []Role{RoleApprentice},
		},
		Vacations: VacationRules{
			MaxConcurrentVacations: 4,
			DesiredRestDays:        2,
		},
	}
}

// PotWasherEarlyFamily and PotWasherLateFamily are the shift-code families
// pot washers alternate across so the two daily pot washers cover opposite
// halves of the day (§4.3 "Shift selection for a candidate").
var (
	PotWasherEarlyFamily = []int{8, 18}
	PotWasherLateFamily  = []int{10, 101}
)

// StandardWorkdayHours is the credit/debit used by Post-Fill Repair for
// sick-leave and vacation working days (§4.6).
const StandardWorkdayHours = 8.3
