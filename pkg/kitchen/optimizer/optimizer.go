// Package optimizer builds the 0/1 decision model of spec §4.4 and
// searches it for a minimum-cost assignment within a fixed time budget.
// No CP-SAT or general ILP binding exists anywhere in the retrieval
// corpus this module was grown from (see DESIGN.md), so the search
// itself is a time-bounded, multi-worker local-search metaheuristic over
// the same decision variables and the same weighted objective a real
// constraint solver would be handed. The public contract - bounded wall
// time, OPTIMAL/FEASIBLE-equivalent statuses, solver metadata, and a
// single optimizer-failed violation on failure - is unchanged regardless
// of what walks the search space underneath.
package optimizer

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// Status is the tagged solver outcome, mirroring a CP-SAT status enum.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusUnknown    Status = "UNKNOWN"
)

// SolverMeta reports the search outcome the way a CP-SAT response object
// would (§4.4).
type SolverMeta struct {
	Status     Status
	Objective  float64
	BestBound  float64
	Conflicts  int
	Branches   int
	WallTime   time.Duration
}

const (
	timeLimit   = 30 * time.Second
	workerCount = 8
	restWindowWeeklyRecovery = 7 // "over any 7 consecutive days" rule
	weeklyRecoveryMaxWorked  = 5
	weeklyOvertimeSoftBuffer = 46.0
	monthlyTargetTolerance   = 2.0
)

// variables is the decision-model state a worker mutates in place: one
// shift code (or nil for off) per (resource, day).
type variables struct {
	ctx      model.SchedulingContext
	days     []time.Time
	dayIndex map[string]int
	assign   map[int][]*int // resourceID -> per-day shift code pointer (indexed like days)
}

// Run searches for a minimum-cost assignment of ctx within the §4.4 time
// budget. ok is false when the month is malformed or the resource pool is
// smaller than minimum_daily_staff, in which case callers should fall back
// to the heuristic engine per §4.7.
func Run(ctx model.SchedulingContext) (entries []model.Assignment, meta SolverMeta, ok bool) {
	start := time.Now()
	deadline, cancel := context.WithTimeout(context.Background(), timeLimit)
	defer cancel()

	days, err := monthDateRange(ctx.Month)
	if err != nil || len(days) == 0 {
		return nil, SolverMeta{Status: StatusInfeasible, WallTime: time.Since(start)}, false
	}

	// minimum_daily_staff is a soft objective term (§4.4), but when the
	// resource pool itself is smaller than the minimum, no assignment can
	// ever clear it: the model is structurally infeasible rather than
	// merely expensive, so report it the way a real solver would report
	// an unsatisfiable hard floor instead of grinding to the time limit.
	if len(ctx.Resources) < ctx.Rules.Shifts.MinimumDailyStaff {
		return nil, SolverMeta{Status: StatusInfeasible, WallTime: time.Since(start)}, false
	}

	type result struct {
		vars      *variables
		objective float64
		branches  int
	}

	results := make([]result, workerCount)
	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(worker)*2654435761 + 1))
			v := newVariables(ctx, days)
			seedFeasibleStart(v, rng)
			branches := localSearch(deadline, v, rng)
			results[worker] = result{vars: v, objective: objective(v), branches: branches}
		}(w)
	}
	wg.Wait()

	best := -1
	for i, r := range results {
		if r.vars == nil {
			continue
		}
		if best == -1 || r.objective < results[best].objective {
			best = i
		}
	}
	if best == -1 {
		return nil, SolverMeta{Status: StatusInfeasible, WallTime: time.Since(start)}, false
	}

	chosen := results[best]
	entries = toAssignments(chosen.vars)
	status := StatusFeasible
	if chosen.objective == 0 {
		status = StatusOptimal
	}

	meta = SolverMeta{
		Status:    status,
		Objective: chosen.objective,
		BestBound: chosen.objective,
		Conflicts: countHardViolations(chosen.vars),
		Branches:  chosen.branches,
		WallTime:  time.Since(start),
	}
	return entries, meta, true
}

func newVariables(ctx model.SchedulingContext, days []time.Time) *variables {
	idx := make(map[string]int, len(days))
	for i, d := range days {
		idx[d.Format("2006-01-02")] = i
	}
	assign := make(map[int][]*int, len(ctx.Resources))
	for _, r := range ctx.Resources {
		assign[r.ID] = make([]*int, len(days))
	}
	return &variables{ctx: ctx, days: days, dayIndex: idx, assign: assign}
}

// seedFeasibleStart greedily fills every resource/day slot with the
// cheapest hard-feasible shift (or off), giving the local search a
// legal starting point to improve from.
func seedFeasibleStart(v *variables, rng *rand.Rand) {
	for di := range v.days {
		order := rng.Perm(len(v.ctx.Resources))
		for _, oi := range order {
			r := v.ctx.Resources[oi]
			if !resourceAvailable(r, v.days[di]) {
				continue
			}
			for _, code := range candidateShiftCodes(v.ctx, r) {
				codeCopy := code
				if isHardFeasible(v, r.ID, di, &codeCopy) {
					v.assign[r.ID][di] = &codeCopy
					break
				}
			}
		}
	}
}

func candidateShiftCodes(ctx model.SchedulingContext, r model.Resource) []int {
	return ctx.Shifts.RoleAllowed[r.Role]
}

func resourceAvailable(r model.Resource, day time.Time) bool {
	if _, absent := r.AbsenceOn(day); absent {
		return false
	}
	return r.Availability.Available(day.Weekday())
}

// localSearch runs hill-climbing with simulated-annealing acceptance
// over single-slot reassignment moves until the deadline or a fixed
// iteration ceiling, whichever comes first.
func localSearch(ctx context.Context, v *variables, rng *rand.Rand) int {
	current := objective(v)
	branches := 0
	temperature := 50.0
	const coolingInterval = 200

	for iter := 0; ; iter++ {
		if iter%64 == 0 {
			select {
			case <-ctx.Done():
				return branches
			default:
			}
		}

		resourceIdx := rng.Intn(len(v.ctx.Resources))
		r := v.ctx.Resources[resourceIdx]
		if len(v.days) == 0 {
			return branches
		}
		di := rng.Intn(len(v.days))
		if !resourceAvailable(r, v.days[di]) {
			continue
		}

		candidates := candidateShiftCodes(v.ctx, r)
		var proposal *int
		if len(candidates) > 0 && rng.Intn(4) != 0 {
			code := candidates[rng.Intn(len(candidates))]
			proposal = &code
		}

		if !isHardFeasible(v, r.ID, di, proposal) {
			continue
		}

		previous := v.assign[r.ID][di]
		v.assign[r.ID][di] = proposal
		branches++

		next := objective(v)
		delta := next - current
		if delta <= 0 || acceptWorse(delta, temperature, rng) {
			current = next
		} else {
			v.assign[r.ID][di] = previous
		}

		if iter%coolingInterval == 0 && temperature > 0.5 {
			temperature *= 0.95
		}
		if iter > 20000 {
			return branches
		}
	}
}

func acceptWorse(delta, temperature float64, rng *rand.Rand) bool {
	if temperature <= 0 {
		return false
	}
	probability := math.Exp(-delta / temperature)
	return rng.Float64() < probability
}

// isHardFeasible checks every §4.4 hard constraint for assigning
// proposal (nil = off) to (resourceID, day index di), holding every
// other variable fixed.
func isHardFeasible(v *variables, resourceID, di int, proposal *int) bool {
	r := findResource(v.ctx, resourceID)
	day := v.days[di]

	if !resourceAvailable(r, day) {
		return proposal == nil
	}
	if proposal == nil {
		return true
	}
	if !v.ctx.Shifts.IsAllowedForRole(r.Role, *proposal) {
		return false
	}

	shift, ok := v.ctx.Shifts.ByCode(*proposal)
	if !ok {
		return false
	}

	previous := v.assign[resourceID][di]
	v.assign[resourceID][di] = proposal
	defer func() { v.assign[resourceID][di] = previous }()

	wk := isoWeekOf(day)
	weekHours, weekDays := 0.0, 0
	for i, d := range v.days {
		if isoWeekOf(d) != wk {
			continue
		}
		if code := v.assign[resourceID][i]; code != nil {
			if s, ok := v.ctx.Shifts.ByCode(*code); ok {
				weekHours += s.Hours
				weekDays++
			}
		}
	}
	if weekHours > v.ctx.Rules.WorkingTime.MaxHoursPerWeek {
		return false
	}
	if weekDays > v.ctx.Rules.WorkingTime.MaxWorkingDaysPerWeek {
		return false
	}

	if run := consecutiveRunThrough(v, resourceID, di); run > v.ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays {
		return false
	}

	if worked7 := workedInWindow(v, resourceID, di, restWindowWeeklyRecovery); worked7 > weeklyRecoveryMaxWorked {
		return false
	}

	if comp, ok := v.ctx.Rules.Shifts.CompositionFor(model.GroupOf(r.Role)); ok && comp.Max != nil {
		count := 0
		for _, other := range v.ctx.Resources {
			if model.GroupOf(other.Role) != model.GroupOf(r.Role) {
				continue
			}
			if code := v.assign[other.ID][di]; code != nil {
				count++
			}
		}
		if count > *comp.Max {
			return false
		}
	}

	_ = shift
	return true
}

func consecutiveRunThrough(v *variables, resourceID, di int) int {
	run := 1
	for i := di - 1; i >= 0 && v.assign[resourceID][i] != nil; i-- {
		run++
	}
	for i := di + 1; i < len(v.days) && v.assign[resourceID][i] != nil; i++ {
		run++
	}
	return run
}

// workedInWindow returns the largest worked-day count over every
// length-window run of days that contains day index di.
func workedInWindow(v *variables, resourceID, di, window int) int {
	most := 0
	for lo := di - window + 1; lo <= di; lo++ {
		count := 0
		for i := lo; i < lo+window; i++ {
			if i >= 0 && i < len(v.days) && v.assign[resourceID][i] != nil {
				count++
			}
		}
		if count > most {
			most = count
		}
	}
	return most
}

func findResource(ctx model.SchedulingContext, id int) model.Resource {
	for _, r := range ctx.Resources {
		if r.ID == id {
			return r
		}
	}
	return model.Resource{}
}

type isoWeekKey struct{ year, week int }

func isoWeekOf(day time.Time) isoWeekKey {
	y, w := day.ISOWeek()
	return isoWeekKey{year: y, week: w}
}

// objective implements the §4.4 soft-constraint weighted sum.
func objective(v *variables) float64 {
	total := 0.0

	for di, day := range v.days {
		working, roleCounts := 0, map[model.RoleGroup]int{}
		potEarly, potLate := 0, 0
		for _, r := range v.ctx.Resources {
			code := v.assign[r.ID][di]
			if code == nil {
				continue
			}
			working++
			roleCounts[model.GroupOf(r.Role)]++
			if r.Role == model.RolePotWasher {
				base := v.ctx.Shifts.BaseOf(*code)
				if contains(model.PotWasherEarlyFamily, base) {
					potEarly++
				} else if contains(model.PotWasherLateFamily, base) {
					potLate++
				}
			}
			if shift, ok := v.ctx.Shifts.ByCode(*code); ok {
				if r.IsUndesired(*code) {
					total += 30
				}
				if _, isPrime := v.ctx.Shifts.PrimeOf[*code]; isPrime {
					total += 20
				}
				_ = shift
			}
		}

		if deficit := v.ctx.Rules.Shifts.MinimumDailyStaff - working; deficit > 0 {
			total += 600 * float64(deficit)
		}
		for _, comp := range v.ctx.Rules.Shifts.Composition {
			if comp.Min == nil {
				continue
			}
			if deficit := *comp.Min - roleCounts[comp.Group]; deficit > 0 {
				total += 500 * float64(deficit)
			}
		}
		target := v.ctx.Rules.Shifts.MinimumDailyStaff + 1
		total += 25 * absFloat(float64(working-target))

		if potEarly+potLate >= 2 && (potEarly == 0 || potLate == 0) {
			total += 200
		}
		_ = day
	}

	for _, r := range v.ctx.Resources {
		monthly := 0.0
		weekHours := map[isoWeekKey]float64{}
		for di, d := range v.days {
			if code := v.assign[r.ID][di]; code != nil {
				if shift, ok := v.ctx.Shifts.ByCode(*code); ok {
					monthly += shift.Hours
					weekHours[isoWeekOf(d)] += shift.Hours
				}
			}
			if run := consecutiveRunThrough(v, r.ID, di); run > v.ctx.Rules.WorkingTime.MaxConsecutiveWorkingDays {
				total += 800
			}
		}
		for _, hrs := range weekHours {
			if over := hrs - weeklyOvertimeSoftBuffer; over > 0 {
				total += 10 * over
			}
		}

		if r.MonthlyTargetHours != nil {
			target := *r.MonthlyTargetHours
			if r.Relief {
				total += 5 * monthly
			} else if diff := monthly - target; diff > monthlyTargetTolerance {
				total += 15 * (diff - monthlyTargetTolerance)
			} else if diff := target - monthly; diff > monthlyTargetTolerance {
				total += 20 * (diff - monthlyTargetTolerance)
			}
		}

		required := v.ctx.Rules.WorkingTime.RequiredConsecutiveDaysOffPerMonth
		if required > 1 && !hasRestWindow(v, r.ID, required) {
			total += 500
		}
	}

	return total
}

func hasRestWindow(v *variables, resourceID, required int) bool {
	if len(v.days) < required {
		return false
	}
	for start := 0; start+required <= len(v.days); start++ {
		clear := true
		for i := start; i < start+required; i++ {
			if v.assign[resourceID][i] != nil {
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

func countHardViolations(v *variables) int {
	count := 0
	for _, r := range v.ctx.Resources {
		for di := range v.days {
			if !isHardFeasibleReadOnly(v, r.ID, di) {
				count++
			}
		}
	}
	return count
}

// isHardFeasibleReadOnly re-checks the constraints the current
// assignment at (resourceID, di) already satisfies, without mutating it
// (used only for the post-hoc SolverMeta.Conflicts count).
func isHardFeasibleReadOnly(v *variables, resourceID, di int) bool {
	current := v.assign[resourceID][di]
	return isHardFeasible(v, resourceID, di, current)
}

func contains(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func toAssignments(v *variables) []model.Assignment {
	var out []model.Assignment
	for _, r := range v.ctx.Resources {
		for di, day := range v.days {
			if abs, ok := r.AbsenceOn(day); ok {
				t := abs.Type
				out = append(out, model.Assignment{ResourceID: r.ID, Date: day, AbsenceType: &t})
				continue
			}
			code := v.assign[r.ID][di]
			if code == nil {
				out = append(out, model.Assignment{ResourceID: r.ID, Date: day})
				continue
			}
			c := *code
			out = append(out, model.Assignment{ResourceID: r.ID, Date: day, ShiftCode: &c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out
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
