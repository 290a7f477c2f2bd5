package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/netintent/internal/report"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "slog", cfg.Log.Backend)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Equal(t, "intentverify", cfg.Tracing.ServiceName)
	assert.Zero(t, cfg.Serve.Interval)
}

func TestFileEnvAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "intentverify.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
workers: 2
log:
  level: debug
  backend: zap
report:
  format: jsonl
serve:
  interval: 30s
tracing:
  exporter: otlp
  endpoint: collector:4317
`), 0o644))

	t.Setenv("INTENTVERIFY_WORKERS", "4")
	t.Setenv("INTENTVERIFY_METRICS_ADDR", ":9999")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level=warn"}))

	v := New()
	require.NoError(t, BindFlags(v, fs, map[string]string{"log.level": "log-level"}))
	cfg, err := Load(v, file)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers, "env beats file")
	assert.Equal(t, "warn", cfg.Log.Level, "flag beats file")
	assert.Equal(t, "zap", cfg.Log.Backend)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
	assert.Equal(t, 30*time.Second, cfg.Serve.Interval)
	assert.Equal(t, report.FormatJSONL, cfg.ReportFormat(true))

	tc := cfg.TracingSettings()
	assert.Equal(t, "otlp", tc.Exporter)
	assert.Equal(t, "collector:4317", tc.Endpoint)

	lc := cfg.Logging()
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "zap", lc.Backend)
}

func TestBindFlagsUnknownFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err := BindFlags(New(), fs, map[string]string{"workers": "workers"})
	assert.ErrorContains(t, err, "--workers")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Workers: -1,
		Report:  ReportConfig{Format: "xml", Color: "sometimes"},
		Log:     LogConfig{Backend: "logrus"},
		Tracing: TracingConfig{Exporter: "jaeger", SampleRatio: 2},
		Serve:   ServeConfig{Interval: -time.Second},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"workers", "xml", "report.color", "log.backend", "tracing.exporter", "sample_ratio", "serve.interval"} {
		assert.ErrorContains(t, err, want)
	}

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReportFormatAndColor(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, report.FormatTable, cfg.ReportFormat(true))
	assert.Equal(t, report.FormatJSON, cfg.ReportFormat(false))

	assert.True(t, cfg.ReportColor(true))
	assert.False(t, cfg.ReportColor(false))
	cfg.Report.Color = "always"
	assert.True(t, cfg.ReportColor(false))
	cfg.Report.Color = "never"
	assert.False(t, cfg.ReportColor(true))
}
