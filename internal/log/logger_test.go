package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

func newJSONLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{
		Level:  level,
		Format: FormatJSON,
		Output: NewOutput(buf),
	})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, buf.String())
	}
	return entry
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")

	if buf.Len() > 0 {
		t.Errorf("expected no output for debug/info at warn level, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if buf.Len() == 0 {
		t.Error("expected output for warn message")
	}
}

func TestJSONFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:       LevelInfo,
		Format:      FormatJSON,
		Output:      NewOutput(&buf),
		ServiceName: "reimburse",
	})

	logger.Info("session ready", "state", "authenticated", "attempt", 1)

	entry := decode(t, &buf)
	if entry["msg"] != "session ready" {
		t.Errorf("expected msg 'session ready', got %v", entry["msg"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("expected level 'INFO', got %v", entry["level"])
	}
	if entry["service"] != "reimburse" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
	if entry["attempt"] != float64(1) {
		t.Errorf("expected attempt 1, got %v", entry["attempt"])
	}
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: NewOutput(&buf)})

	logger.Info("test message", "key1", "value1")

	output := buf.String()
	if !strings.Contains(output, "test message") || !strings.Contains(output, "key1=value1") {
		t.Errorf("unexpected text output: %s", output)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info("call")

	entry := decode(t, &buf)
	if entry["request_id"] != "req-42" {
		t.Errorf("expected request_id 'req-42', got %v", entry["request_id"])
	}

	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no request ID")
	}
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantSuggs bool
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name:     "coded error",
			err:      errors.NewValidationError("amount is required", 422),
			wantCode: "API-001",
		},
		{
			name:      "coded error with suggestions",
			err:       errors.NewUnauthorizedError(""),
			wantCode:  "AUTH-003",
			wantSuggs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newJSONLogger(&buf, LevelInfo)

			logger.WithError(tt.err).Info("test")
			entry := decode(t, &buf)

			if tt.err == nil {
				if _, ok := entry["error"]; ok {
					t.Error("expected no error field for nil error")
				}
				return
			}

			if entry["error_code"] != tt.wantCode {
				t.Errorf("expected error_code %q, got %v", tt.wantCode, entry["error_code"])
			}
			if _, ok := entry["suggestions"]; ok != tt.wantSuggs {
				t.Errorf("suggestions present = %v, want %v", ok, tt.wantSuggs)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelInfo)

	logger.LogError(context.Background(), "logout", errors.NewNetworkError("logout", context.DeadlineExceeded))

	entry := decode(t, &buf)
	if entry["op"] != "logout" {
		t.Errorf("expected op 'logout', got %v", entry["op"])
	}
	if entry["error_code"] != "NET-001" {
		t.Errorf("expected NET-001, got %v", entry["error_code"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("expected ERROR level, got %v", entry["level"])
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("discard logger should not be enabled at debug")
	}
}
