// Package engine is the public orchestration surface (spec §4.7): fetch
// nothing, compute with the pure sub-packages, log the outcome, decide
// what status to report. Logging lives here and nowhere in
// pkg/kitchen/{model,calendar,rules,heuristic,optimizer,relax,postfill},
// the same split the teacher draws between its logged services package
// and its pure allocator package.
package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forextrader4711/kitchen-scheduler/internal/logging"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/heuristic"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/optimizer"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/relax"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/rules"
)

// Engine wraps the stateless scheduling pipeline with a logger. It holds
// no other state: concurrent calls on the same Engine value are safe
// because every call owns its own mutable working state (§5).
type Engine struct {
	logger *zap.Logger
}

// New builds an Engine. logger must not be nil.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// RunHeuristic always returns a schedule (§4.7): status is success
// unless the context itself is invalid, in which case it is error.
func (e *Engine) RunHeuristic(ctx model.SchedulingContext) model.SchedulingResult {
	runID := uuid.New().String()
	start := time.Now()
	log := logging.ForRun(e.logger, runID, ctx.Month)

	log.Debug("running heuristic engine")

	if err := ctx.Validate(); err != nil {
		log.Error("invalid scheduling context", zap.Error(err))
		return model.SchedulingResult{
			RunID:      runID,
			Engine:     model.EngineHeuristic,
			Status:     model.StatusError,
			DurationMS: time.Since(start).Milliseconds(),
			Meta:       map[string]any{"error": err.Error()},
		}
	}

	entries, err := heuristic.Run(ctx)
	if err != nil {
		log.Error("heuristic run failed", zap.Error(err))
		return model.SchedulingResult{
			RunID:      runID,
			Engine:     model.EngineHeuristic,
			Status:     model.StatusError,
			DurationMS: time.Since(start).Milliseconds(),
			Meta:       map[string]any{"error": err.Error()},
		}
	}

	entries = relax.Apply(ctx, entries)
	violations := rules.Evaluate(ctx, entries)

	log.Info("heuristic run complete",
		zap.Int("entries", len(entries)),
		zap.Int("violations", len(violations)))

	return model.SchedulingResult{
		RunID:      runID,
		Entries:    entries,
		Violations: violations,
		Engine:     model.EngineHeuristic,
		Status:     model.StatusSuccess,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// RunOptimizer runs the CP-SAT-contract solver alone: status is success
// when a solution was found, error otherwise (§4.7). Callers that want
// the heuristic fallback should call Orchestrate instead.
func (e *Engine) RunOptimizer(ctx model.SchedulingContext) model.SchedulingResult {
	runID := uuid.New().String()
	start := time.Now()
	log := logging.ForRun(e.logger, runID, ctx.Month)

	log.Debug("running optimizer engine")

	if err := ctx.Validate(); err != nil {
		log.Error("invalid scheduling context", zap.Error(err))
		return model.SchedulingResult{
			RunID:      runID,
			Engine:     model.EngineOptimizer,
			Status:     model.StatusError,
			DurationMS: time.Since(start).Milliseconds(),
			Meta:       map[string]any{"error": err.Error()},
		}
	}

	entries, meta, ok := optimizer.Run(ctx)
	solverMeta := map[string]any{
		"status":     string(meta.Status),
		"objective":  meta.Objective,
		"best_bound": meta.BestBound,
		"conflicts":  meta.Conflicts,
		"branches":   meta.Branches,
		"wall_time":  meta.WallTime.String(),
	}

	if !ok {
		log.Warn("optimizer failed to find a feasible solution", zap.Any("solver_meta", solverMeta))
		return model.SchedulingResult{
			RunID:   runID,
			Engine:  model.EngineOptimizer,
			Status:  model.StatusError,
			Violations: []model.Violation{{
				Code:     "optimizer-failed",
				Message:  "optimizer did not find a feasible solution within the time budget",
				Severity: model.SeverityCritical,
				Scope:    model.ScopeSchedule,
			}},
			DurationMS: time.Since(start).Milliseconds(),
			Meta:       solverMeta,
		}
	}

	entries = relax.Apply(ctx, entries)
	violations := rules.Evaluate(ctx, entries)

	log.Info("optimizer run complete",
		zap.Int("entries", len(entries)),
		zap.Int("violations", len(violations)),
		zap.Any("solver_meta", solverMeta))

	return model.SchedulingResult{
		RunID:      runID,
		Entries:    entries,
		Violations: violations,
		Engine:     model.EngineOptimizer,
		Status:     model.StatusSuccess,
		DurationMS: time.Since(start).Milliseconds(),
		Meta:       solverMeta,
	}
}

// Orchestrate runs the optimizer and falls back to the heuristic on
// failure, per §4.7: the returned Result carries status=fallback and a
// merged violation list (the optimizer-failed violation, the heuristic
// result's own violations, and a warning listing per-day staffing
// shortfalls when there are any) when the fallback fires.
func (e *Engine) Orchestrate(ctx model.SchedulingContext) model.SchedulingResult {
	runID := uuid.New().String()
	start := time.Now()
	log := logging.ForRun(e.logger, runID, ctx.Month)

	result := e.RunOptimizer(ctx)
	if result.Status == model.StatusSuccess {
		result.RunID = runID
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	log.Warn("optimizer unavailable, falling back to heuristic")

	fallback := e.RunHeuristic(ctx)
	if fallback.Status == model.StatusError {
		fallback.RunID = runID
		fallback.DurationMS = time.Since(start).Milliseconds()
		return fallback
	}
	shortfalls := dailyShortfallSummary(ctx, fallback.Entries)

	violations := append([]model.Violation{}, result.Violations...)
	violations = append(violations, fallback.Violations...)
	if len(shortfalls) > 0 {
		violations = append(violations, model.Violation{
			Code:     "optimizer-infeasible",
			Message:  "optimizer fell back to the heuristic engine; see meta.shortfalls for per-day staffing gaps",
			Severity: model.SeverityWarning,
			Scope:    model.ScopeSchedule,
			Meta:     map[string]any{"shortfalls": shortfalls},
		})
	}

	meta := map[string]any{}
	for k, v := range result.Meta {
		meta[k] = v
	}
	meta["shortfalls"] = shortfalls
	meta["fallback_reason"] = "optimizer-failed"

	return model.SchedulingResult{
		RunID:      runID,
		Entries:    fallback.Entries,
		Violations: violations,
		Engine:     model.EngineOptimizer,
		Status:     model.StatusFallback,
		DurationMS: time.Since(start).Milliseconds(),
		Meta:       meta,
	}
}

// dailyShortfallSummary lists every day whose assignments fell below
// minimum_daily_staff, tagged with "staffing" so callers can filter the
// shortfall label set (§8 Scenario F).
func dailyShortfallSummary(ctx model.SchedulingContext, entries []model.Assignment) []map[string]any {
	working := make(map[string]int)
	seen := make(map[string]bool)
	for _, e := range entries {
		key := e.Date.Format("2006-01-02")
		seen[key] = true
		if e.IsWorkDay() {
			working[key]++
		}
	}

	days := make([]string, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Strings(days)

	var out []map[string]any
	for _, day := range days {
		count := working[day]
		if count < ctx.Rules.Shifts.MinimumDailyStaff {
			out = append(out, map[string]any{
				"day":    day,
				"count":  count,
				"labels": []string{"staffing"},
			})
		}
	}
	return out
}
