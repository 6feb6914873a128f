// Package logger provides the structured logger shared by the generator,
// its exporters and the status server.
package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every line written by New.
const ServiceName = "corpusgen"

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// New creates a JSON logger on stderr. Stdout is left to the run report.
//
// Identical messages beyond 100 per second are sampled, which keeps the
// per-artifact lines of a large run readable.
func New(level string) (*Logger, error) {
	logger, err := config(parseLevel(level)).Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

func config(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "json",
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 50,
		},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "component",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		InitialFields:    map[string]interface{}{"service": ServiceName},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// NewDevelopment creates a console logger for local runs.
func NewDevelopment() (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named creates a child logger for one component, such as an exporter.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

// WithRun scopes a logger to one generation run. The seed is logged so a
// run can be replayed.
func (l *Logger) WithRun(runID string, seed int64, startedAt time.Time) *Logger {
	return l.With(
		zap.String("run_id", runID),
		zap.Int64("seed", seed),
		zap.Time("run_started_at", startedAt),
	)
}

// WithScenario creates a child logger scoped to one scenario realization.
func (l *Logger) WithScenario(scenarioID string, pass, occurrence int) *Logger {
	return l.With(
		zap.String("scenario_id", scenarioID),
		zap.Int("pass", pass),
		zap.Int("occurrence", occurrence),
	)
}

// WithArtifact creates a child logger for one written artifact.
func (l *Logger) WithArtifact(kind, artifactID string) *Logger {
	return l.With(
		zap.String("artifact_kind", kind),
		zap.String("artifact_id", artifactID),
	)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Global logger instance for convenience.
var global *Logger

func init() {
	if os.Getenv("CORPUSGEN_ENV") == "development" {
		global, _ = NewDevelopment()
	} else {
		global, _ = New(os.Getenv("LOG_LEVEL"))
	}
}

// Global returns the global logger instance.
func Global() *Logger {
	return global
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	global = l
}
