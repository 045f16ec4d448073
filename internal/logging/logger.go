// Package logging builds the scheduler's zap logger: colored console
// output plus a JSON file sink, so operators get a readable tail and a
// structured archive from the same call, and a run-scoped child logger
// helper the engine package uses to avoid repeating run_id/month fields
// on every log line.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds a zap logger tee-ing console output (human-readable)
// and a timestamped file under logs/, prefixed with env. In "dev" the file
// sink captures Debug+ so local scenario runs can be replayed step by step;
// any other env (e.g. "prod") captures Info+ only, since a production
// scheduler run can process hundreds of resource-days per invocation and a
// full debug trace of every candidate score would dwarf the useful signal.
func InitLogger(env string) (*zap.Logger, error) {
	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFileName := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", env, timestamp))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoderConfig := zap.NewProductionEncoderConfig()
	fileEncoderConfig.TimeKey = "timestamp"
	fileEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig)

	fileLevel := zapcore.InfoLevel
	if env == "dev" {
		fileLevel = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), fileLevel),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger.With(zap.String("component", "schedctl"), zap.String("env", env)), nil
}

// ForRun returns a child logger carrying the run id and scheduling month,
// so call sites in pkg/kitchen/engine don't repeat those fields on every
// log statement within a single RunHeuristic/RunOptimizer/Orchestrate call.
func ForRun(base *zap.Logger, runID, month string) *zap.Logger {
	return base.With(zap.String("run_id", runID), zap.String("month", month))
}
