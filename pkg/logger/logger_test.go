package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLevel(tc.in), tc.in)
	}
}

func TestConfig_TagsServiceAndSamples(t *testing.T) {
	cfg := config(zapcore.DebugLevel)

	assert.Equal(t, ServiceName, cfg.InitialFields["service"])
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
	require.NotNil(t, cfg.Sampling)
	assert.Equal(t, 100, cfg.Sampling.Initial)
}

func TestWithRunScenarioArtifact(t *testing.T) {
	// arrange
	log, logs := observed()
	started := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	// act
	log.WithRun("run-1", 42, started).
		WithScenario("pricing_thread", 2, 5).
		WithArtifact("email", "<a@acme.com>").
		Info("artifact written")

	// assert
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, int64(42), fields["seed"])
	assert.Equal(t, "pricing_thread", fields["scenario_id"])
	assert.Equal(t, int64(2), fields["pass"])
	assert.Equal(t, int64(5), fields["occurrence"])
	assert.Equal(t, "email", fields["artifact_kind"])
	assert.Equal(t, "<a@acme.com>", fields["artifact_id"])
}

func TestNamed(t *testing.T) {
	log, logs := observed()

	log.Named("export").Info("written")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "export", logs.All()[0].LoggerName)
}
