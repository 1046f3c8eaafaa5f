package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies that parseLogLevel correctly parses log level
// strings from environment variables, handling case-insensitivity and whitespace.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}

	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
	logger.Info("test message")
	_ = FlushTelemetry(logger)
}

func TestFlushTelemetry_NilLogger(t *testing.T) {
	if err := FlushTelemetry(nil); err != nil {
		t.Errorf("FlushTelemetry(nil) error = %v, want nil", err)
	}
}

// TestLoggerFromContext verifies the lookup order: context logger, then fallback, then no-op.
func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctxLogger := zap.New(core)

	ctx := WithLogger(context.Background(), ctxLogger)
	LoggerFromContext(ctx, nil).Info("from context")
	if logs.Len() != 1 {
		t.Fatalf("logged entries = %d, want 1", logs.Len())
	}

	fallbackCore, fallbackLogs := observer.New(zap.InfoLevel)
	LoggerFromContext(context.Background(), zap.New(fallbackCore)).Info("from fallback")
	if fallbackLogs.Len() != 1 {
		t.Errorf("fallback logged entries = %d, want 1", fallbackLogs.Len())
	}

	if LoggerFromContext(context.Background(), nil) == nil {
		t.Error("LoggerFromContext() = nil, want no-op logger")
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(empty) = %q, want empty", got)
	}
	ctx := WithCorrelationID(context.Background(), "abc-123")
	if got := CorrelationID(ctx); got != "abc-123" {
		t.Errorf("CorrelationID() = %q, want abc-123", got)
	}
}
