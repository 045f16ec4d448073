// Package heuristic produces a schedule day-by-day using a greedy,
// deterministic candidate-scoring algorithm (spec §4.3). It holds no
// logger and performs no I/O: Run is a pure function of its inputs.
package heuristic

import (
	"sort"
	"strconv"
	"time"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// roleAssignPriority breaks scoring ties: lower priority roles are
// preferred when every other term is equal (§4.3 "role selection priority").
var roleAssignPriority = map[model.Role]int{
	model.RoleCook:             0,
	model.RoleReliefCook:       1,
	model.RoleKitchenAssistant: 2,
	model.RoleApprentice:       3,
	model.RolePotWasher:        4,
}

type isoWeekKey struct {
	year, week int
}

func isoWeekOf(day time.Time) isoWeekKey {
	y, w := day.ISOWeek()
	return isoWeekKey{year: y, week: w}
}

// resourceState is the mutable per-resource bookkeeping the day-by-day
// loop threads through the month (§4.3 "maintains a mutable state").
type resourceState struct {
	resource model.Resource

	weeklyHours map[isoWeekKey]float64
	weeklyDays  map[isoWeekKey]int

	consecutiveDays  int
	monthlyHours     float64
	totalAssignments int

	forcedRest map[string]bool // "2006-01-02" -> true

	potWasherLastFamily int // 0 = none yet, 1 = early family, 2 = late family
}

func newResourceState(r model.Resource) *resourceState {
	return &resourceState{
		resource:    r,
		weeklyHours: make(map[isoWeekKey]float64),
		weeklyDays:  make(map[isoWeekKey]int),
		forcedRest:  make(map[string]bool),
	}
}

// Run produces a full month's assignment list for ctx using the §4.3
// greedy day-by-day algorithm.
func Run(ctx model.SchedulingContext) ([]model.Assignment, error) {
	monthDays, err := monthDateRange(ctx.Month)
	if err != nil {
		return nil, err
	}

	states := make(map[int]*resourceState, len(ctx.Resources))
	for _, r := range ctx.Resources {
		states[r.ID] = newResourceState(r)
	}
	applyMandatoryRestPrePass(ctx, monthDays, states)

	var entries []model.Assignment

	for _, day := range monthDays {
		dayEntries, assignedToday := runDay(ctx, day, states)
		entries = append(entries, dayEntries...)

		for _, r := range ctx.Resources {
			st := states[r.ID]
			if !assignedToday[r.ID] {
				st.consecutiveDays = 0
			}
		}
	}

	// Every resource with no shift or absence entry on a given day
	// (forced-rest days included) gets an explicit rest-day record, so
	// callers see a complete resource x day grid.
	entries = append(entries, fillRestDays(ctx, monthDays, entries)...)

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ResourceID < entries[j].ResourceID
	})

	return entries, nil
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

// applyMandatoryRestPrePass marks a forced-rest window for every resource
// that doesn't already have one from absences/unavailability (§4.3
// "Pre-pass").
func applyMandatoryRestPrePass(ctx model.SchedulingContext, monthDays []time.Time, states map[int]*resourceState) {
	required := ctx.Rules.WorkingTime.RequiredConsecutiveDaysOffPerMonth
	if required <= 1 {
		return
	}

	for _, r := range ctx.Resources {
		st := states[r.ID]
		if hasExistingRestWindow(r, monthDays, required) {
			continue
		}

		candidates := availableWindows(r, monthDays, required)
		if len(candidates) == 0 {
			continue
		}

		mid := len(monthDays) / 2
		best := pickBestWindow(candidates, mid, r.ID)
		for i := best; i < best+required; i++ {
			st.forcedRest[monthDays[i].Format("2006-01-02")] = true
		}
	}
}

func hasExistingRestWindow(r model.Resource, monthDays []time.Time, required int) bool {
	if len(monthDays) < required {
		return false
	}
	for start := 0; start+required <= len(monthDays); start++ {
		clear := true
		for i := start; i < start+required; i++ {
			if isAvailableForWork(r, monthDays[i]) {
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

// availableWindows returns the start indices of every length-required run
// of days on which the resource is available (a candidate forced-rest
// window, since rest can only be forced on days they would otherwise work).
func availableWindows(r model.Resource, monthDays []time.Time, required int) []int {
	var out []int
	for start := 0; start+required <= len(monthDays); start++ {
		ok := true
		for i := start; i < start+required; i++ {
			if !isAvailableForWork(r, monthDays[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, start)
		}
	}
	return out
}

// pickBestWindow prefers windows further from the month's edges; ties
// rotate by resource.id mod candidates (§4.3).
func pickBestWindow(candidates []int, mid, resourceID int) int {
	bestScore := -1
	var best []int
	for _, c := range candidates {
		dist := c - mid
		if dist < 0 {
			dist = -dist
		}
		score := -dist
		if best == nil || score > bestScore {
			bestScore = score
			best = []int{c}
		} else if score == bestScore {
			best = append(best, c)
		}
	}
	return best[resourceID%len(best)]
}

func isAvailableForWork(r model.Resource, day time.Time) bool {
	if _, absent := r.AbsenceOn(day); absent {
		return false
	}
	return r.Availability.Available(day.Weekday())
}

// dayRunState carries per-day scratch data across the role-minimum,
// coverage, and deficit passes (§4.3 "Per-day loop").
type dayRunState struct {
	day          time.Time
	assigned     map[int]int // resourceID -> shift code
	roleCounts   map[model.RoleGroup]int
	potWasherEarly int
	potWasherLate  int
}

func runDay(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState) ([]model.Assignment, map[int]bool) {
	drs := &dayRunState{
		day:        day,
		assigned:   make(map[int]int),
		roleCounts: make(map[model.RoleGroup]int),
	}

	// Absences take priority and are recorded up front; absent resources
	// are never eligible for the passes below.
	var entries []model.Assignment
	for _, r := range ctx.Resources {
		if abs, ok := r.AbsenceOn(day); ok {
			t := abs.Type
			entries = append(entries, model.Assignment{ResourceID: r.ID, Date: day, AbsenceType: &t})
		}
	}

	// Role minimums pass.
	for _, comp := range ctx.Rules.Shifts.Composition {
		if comp.Min == nil {
			continue
		}
		for drs.roleCounts[comp.Group] < *comp.Min {
			cand := bestCandidateForRole(ctx, day, states, drs, comp.Group)
			if cand == nil {
				break
			}
			applyCandidate(ctx, states, drs, cand)
			entries = append(entries, cand.toAssignment())
		}
	}

	// Coverage pass.
	for len(drs.assigned) < ctx.Rules.Shifts.MinimumDailyStaff {
		cand := bestCandidateOverall(ctx, day, states, drs, true)
		if cand == nil {
			break
		}
		applyCandidate(ctx, states, drs, cand)
		entries = append(entries, cand.toAssignment())
	}

	// Deficit pass.
	target := ctx.Rules.Shifts.MinimumDailyStaff + 1
	if target > len(ctx.Resources) {
		target = len(ctx.Resources)
	}
	for len(drs.assigned) < target {
		cand := bestDeficitCandidate(ctx, day, states, drs)
		if cand == nil {
			break
		}
		applyCandidate(ctx, states, drs, cand)
		entries = append(entries, cand.toAssignment())
	}

	assignedToday := make(map[int]bool, len(drs.assigned))
	for rid := range drs.assigned {
		assignedToday[rid] = true
	}
	return entries, assignedToday
}

// candidate is a scored (resource, shift) pairing under consideration
// for a single day.
type candidate struct {
	resource  model.Resource
	day       time.Time
	shiftCode int
	hours     float64
	score     float64
}

func (c *candidate) toAssignment() model.Assignment {
	code := c.shiftCode
	return model.Assignment{ResourceID: c.resource.ID, Date: c.day, ShiftCode: &code}
}

func applyCandidate(ctx model.SchedulingContext, states map[int]*resourceState, drs *dayRunState, c *candidate) {
	st := states[c.resource.ID]

	wk := isoWeekOf(drs.day)
	st.weeklyHours[wk] += c.hours
	st.weeklyDays[wk]++
	st.consecutiveDays++
	st.monthlyHours += c.hours
	st.totalAssignments++

	drs.assigned[c.resource.ID] = c.shiftCode
	drs.roleCounts[model.GroupOf(c.resource.Role)]++

	if c.resource.Role == model.RolePotWasher {
		if containsInt(model.PotWasherEarlyFamily, ctx.Shifts.BaseOf(c.shiftCode)) {
			drs.potWasherEarly++
			st.potWasherLastFamily = 1
		} else if containsInt(model.PotWasherLateFamily, ctx.Shifts.BaseOf(c.shiftCode)) {
			drs.potWasherLate++
			st.potWasherLastFamily = 2
		}
	}
}

func containsInt(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

// isEligible implements §4.3 "Eligibility".
func isEligible(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState, r model.Resource) bool {
	st := states[r.ID]
	key := day.Format("2006-01-02")

	if _, already := drs.assigned[r.ID]; already {
		return false
	}
	if st.forcedRest[key] {
		return false
	}
	if _, absent := r.AbsenceOn(day); absent {
		return false
	}
	if !r.Availability.Available(day.Weekday()) {
		return false
	}

	wk := isoWeekOf(day)
	if st.weeklyDays[wk]+1 > ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek {
		return false
	}
	if st.consecutiveDays+1 > ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays {
		return false
	}
	return true
}

// eligibleShiftPool builds the role-allowed, undesired-filtered shift
// pool for r and narrows it to the pot-washer family; pickShiftCode then
// chooses the deterministic index (§4.3 "Shift selection for a candidate").
func eligibleShiftPool(ctx model.SchedulingContext, states map[int]*resourceState, r model.Resource) []int {
	allowed := ctx.Shifts.RoleAllowed[r.Role]
	var pool []int
	var preferred []int
	for _, code := range allowed {
		if r.IsUndesired(code) {
			continue
		}
		if r.IsPreferred(code) {
			preferred = append(preferred, code)
		}
		pool = append(pool, code)
	}
	if len(preferred) > 0 {
		pool = preferred
	}

	if r.Role == model.RolePotWasher {
		st := states[r.ID]
		var family []int
		if st.potWasherLastFamily == 1 {
			family = model.PotWasherLateFamily
		} else {
			family = model.PotWasherEarlyFamily
		}
		var filtered []int
		for _, code := range pool {
			if containsInt(family, code) {
				filtered = append(filtered, code)
			}
		}
		if len(filtered) > 0 {
			pool = filtered
		}
	}
	return pool
}

func pickShiftCode(states map[int]*resourceState, r model.Resource, pool []int) (int, bool) {
	if len(pool) == 0 {
		return 0, false
	}
	st := states[r.ID]
	idx := st.totalAssignments % len(pool)
	return pool[idx], true
}

func weeklyTargetHours(r model.Resource) (float64, bool) {
	if r.MonthlyTargetHours == nil {
		return 0, false
	}
	return *r.MonthlyTargetHours, true
}

// scoreCandidate implements the §4.3 weighted scoring formula, lower is
// better. Returns (score, blocked) where blocked rules the candidate out
// entirely: an unknown shift code, a monthly target overrun beyond the 2h
// tolerance, or a projected week above max_hours_per_week.
func scoreCandidate(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState, r model.Resource, shiftCode int) (float64, bool) {
	st := states[r.ID]
	shift, ok := ctx.Shifts.ByCode(shiftCode)
	if !ok {
		return 0, true
	}

	score := 0.0
	group := model.GroupOf(r.Role)

	if comp, ok := ctx.Rules.Shifts.CompositionFor(group); ok {
		count := drs.roleCounts[group]
		if comp.Min != nil && count < *comp.Min {
			score -= 40 * float64(*comp.Min-count)
		}
		if comp.Max != nil && count+1 > *comp.Max {
			score += 80 * float64(count+1-*comp.Max)
		}
	}

	if target, ok := weeklyTargetHours(r); ok {
		projected := st.monthlyHours + shift.Hours
		deficit := target - st.monthlyHours
		if deficit > 0 {
			bonus := deficit
			if bonus > shift.Hours {
				bonus = shift.Hours
			}
			score -= 45 * bonus
		}
		if projected > target {
			overage := projected - target
			score += 25 * overage
			if projected > target+2 {
				return 0, true
			}
			score += 120 * overage
		}
	}

	wk := isoWeekOf(day)
	projectedWeekly := st.weeklyHours[wk] + shift.Hours
	if projectedWeekly > ctx.Rules.WorkingTime.MaxHoursPerWeek {
		return 0, true
	}
	if projectedWeekly > 46 {
		score += 20 * (projectedWeekly - 46)
	}

	if st.consecutiveDays+1 > ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays-1 {
		score += 65 * float64(st.consecutiveDays+1-(ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays-1))
	}

	if st.weeklyDays[wk]+1 == ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek {
		score += 140
	}

	if r.IsPreferred(shiftCode) {
		score -= 30
	}
	if r.IsUndesired(shiftCode) {
		score += 60
	}

	if r.Role == model.RolePotWasher {
		if drs.potWasherEarly+drs.potWasherLate > 0 {
			score += 40
		}
	}

	if _, isPrime := ctx.Shifts.PrimeOf[shiftCode]; isPrime {
		score += 30
	}

	if r.Relief {
		score += 120
	}

	score += 2 * float64(st.totalAssignments)
	score += float64(roleAssignPriority[r.Role])

	assignedSoFar := len(drs.assigned) + 1
	if assignedSoFar > ctx.Rules.Shifts.MinimumDailyStaff+1 {
		score += 75 * float64(assignedSoFar-(ctx.Rules.Shifts.MinimumDailyStaff+1))
	}

	return score, false
}

func bestCandidateForRole(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState, group model.RoleGroup) *candidate {
	var best *candidate
	for _, r := range ctx.Resources {
		if model.GroupOf(r.Role) != group {
			continue
		}
		if !isEligible(ctx, day, states, drs, r) {
			continue
		}
		c := bestShiftForResource(ctx, day, states, drs, r)
		if c == nil {
			continue
		}
		if best == nil || c.score < best.score {
			best = c
		}
	}
	return best
}

func bestCandidateOverall(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState, avoidSecondPotWasher bool) *candidate {
	var best *candidate
	for _, r := range ctx.Resources {
		if !isEligible(ctx, day, states, drs, r) {
			continue
		}
		if avoidSecondPotWasher && r.Role == model.RolePotWasher && (drs.potWasherEarly+drs.potWasherLate) >= 1 {
			continue
		}
		c := bestShiftForResource(ctx, day, states, drs, r)
		if c == nil {
			continue
		}
		if best == nil || c.score < best.score {
			best = c
		}
	}
	if best == nil {
		// relax the second-pot-washer avoidance if nothing else was eligible
		for _, r := range ctx.Resources {
			if !isEligible(ctx, day, states, drs, r) {
				continue
			}
			c := bestShiftForResource(ctx, day, states, drs, r)
			if c == nil {
				continue
			}
			if best == nil || c.score < best.score {
				best = c
			}
		}
	}
	return best
}

func bestDeficitCandidate(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState) *candidate {
	var best *candidate
	for _, r := range ctx.Resources {
		if !isEligible(ctx, day, states, drs, r) {
			continue
		}
		target, ok := weeklyTargetHours(r)
		if !ok {
			continue
		}
		st := states[r.ID]
		deficit := target - st.monthlyHours
		if deficit <= 4 {
			continue
		}
		if comp, ok := ctx.Rules.Shifts.CompositionFor(model.GroupOf(r.Role)); ok && comp.Max != nil {
			if drs.roleCounts[model.GroupOf(r.Role)] >= *comp.Max {
				continue
			}
		}
		c := bestShiftForResource(ctx, day, states, drs, r)
		if c == nil {
			continue
		}
		if best == nil || c.score < best.score {
			best = c
		}
	}
	return best
}

func bestShiftForResource(ctx model.SchedulingContext, day time.Time, states map[int]*resourceState, drs *dayRunState, r model.Resource) *candidate {
	pool := eligibleShiftPool(ctx, states, r)
	code, ok := pickShiftCode(states, r, pool)
	if !ok {
		return nil
	}
	shift, ok := ctx.Shifts.ByCode(code)
	if !ok {
		return nil
	}
	score, blocked := scoreCandidate(ctx, day, states, drs, r, code)
	if blocked {
		// try every other pool member before giving up on this resource
		for _, alt := range pool {
			if alt == code {
				continue
			}
			altScore, altBlocked := scoreCandidate(ctx, day, states, drs, r, alt)
			if !altBlocked {
				altShift, _ := ctx.Shifts.ByCode(alt)
				return &candidate{resource: r, day: day, shiftCode: alt, hours: altShift.Hours, score: altScore}
			}
		}
		return nil
	}
	return &candidate{resource: r, day: day, shiftCode: code, hours: shift.Hours, score: score}
}

// fillRestDays adds an explicit rest-day assignment for every
// resource x day pair not already covered by a shift or absence entry.
func fillRestDays(ctx model.SchedulingContext, monthDays []time.Time, entries []model.Assignment) []model.Assignment {
	covered := make(map[string]bool, len(entries))
	for _, e := range entries {
		covered[e.Date.Format("2006-01-02")+"|"+strconv.Itoa(e.ResourceID)] = true
	}

	var out []model.Assignment
	for _, day := range monthDays {
		for _, r := range ctx.Resources {
			key := day.Format("2006-01-02") + "|" + strconv.Itoa(r.ID)
			if covered[key] {
				continue
			}
			out = append(out, model.Assignment{ResourceID: r.ID, Date: day})
		}
	}
	return out
}
