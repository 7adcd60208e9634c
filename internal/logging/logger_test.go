package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"panic", zerolog.PanicLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Format: "json", Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "json", Level: "info", Component: "serializer", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Int64("nodes", 5).Int64("edges", 12).Msg("Graph loaded")

	entry := decodeEntry(t, &buf)
	if entry["message"] != "Graph loaded" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["component"] != "serializer" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["nodes"] != float64(5) || entry["edges"] != float64(12) {
		t.Errorf("counts = %v/%v, want 5/12", entry["nodes"], entry["edges"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Format: "console", Level: "debug", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug().Str("location", "s3://graphs/g.csc").Msg("opening backend")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("console output looks like JSON: %s", out)
	}
	if !strings.Contains(out, "opening backend") || !strings.Contains(out, "s3://graphs/g.csc") {
		t.Errorf("console output missing fields: %s", out)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(Config{Format: "json", Level: "warn", Output: &buf})

	logger.Debug().Msg("seed parsed")
	logger.Info().Msg("subgraph extracted")
	logger.Warn().Msg("chunk size clamped")

	out := buf.String()
	if strings.Contains(out, "seed parsed") || strings.Contains(out, "subgraph extracted") {
		t.Errorf("entries below warn were written: %s", out)
	}
	if !strings.Contains(out, "chunk size clamped") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestMetricsHook(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(Config{Format: "json", Level: "info", Output: &buf})

	warnBefore := testutil.ToFloat64(LogEntriesTotal.WithLabelValues("warn"))
	debugBefore := testutil.ToFloat64(LogEntriesTotal.WithLabelValues("debug"))
	errBefore := testutil.ToFloat64(LogErrorsTotal)

	logger.Debug().Msg("filtered")
	logger.Warn().Msg("counted")
	logger.Error().Msg("counted too")

	if got := testutil.ToFloat64(LogEntriesTotal.WithLabelValues("warn")); got != warnBefore+1 {
		t.Errorf("warn entries = %v, want %v", got, warnBefore+1)
	}
	if got := testutil.ToFloat64(LogEntriesTotal.WithLabelValues("debug")); got != debugBefore {
		t.Errorf("filtered debug entry was counted")
	}
	if got := testutil.ToFloat64(LogErrorsTotal); got != errBefore+1 {
		t.Errorf("error entries = %v, want %v", got, errBefore+1)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Format != "json" || cfg.Level != "info" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if _, err := NewLogger(cfg); err != nil {
		t.Errorf("NewLogger(DefaultConfig()) error = %v", err)
	}
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger()
	if logger.GetLevel() != zerolog.Disabled {
		t.Errorf("level = %v, want disabled", logger.GetLevel())
	}
}
