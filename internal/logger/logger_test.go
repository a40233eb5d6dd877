package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"upper case", "ERROR", zerolog.ErrorLevel},
		{"invalid level", "loud", zerolog.InfoLevel},
		{"default level", "", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetForTesting()

			var buf bytes.Buffer
			Setup(Config{
				Level:      tt.level,
				Output:     &buf,
				TimeFormat: time.RFC3339,
			})

			log := Get()
			require.NotNil(t, log)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, FormatConsole, ParseLogFormat("console"))
	assert.Equal(t, FormatConsole, ParseLogFormat("Pretty"))
	assert.Equal(t, FormatJSON, ParseLogFormat("json"))
	assert.Equal(t, FormatJSON, ParseLogFormat("something-else"))
	assert.Equal(t, "json", FormatJSON.String())
}

func TestLogMethodsWriteFields(t *testing.T) {
	ResetForTesting()
	var buf bytes.Buffer
	Setup(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	buf.Reset()
	Get().Info("book fetched", map[string]interface{}{"book_id": "42"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "book fetched", entry["message"])
	assert.Equal(t, "42", entry["book_id"])

	buf.Reset()
	Get().Warnf("retrying %s", "later")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "retrying later", entry["message"])
}

func TestLevelFiltering(t *testing.T) {
	ResetForTesting()
	var buf bytes.Buffer
	Setup(Config{Level: "error", Format: FormatJSON, Output: &buf})

	buf.Reset()
	Get().Debug("hidden")
	Get().Info("hidden")
	Get().Warn("hidden")
	assert.Empty(t, buf.String())

	Get().Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestComponentAndWithFields(t *testing.T) {
	ResetForTesting()
	var buf bytes.Buffer
	Setup(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	buf.Reset()
	Component("session").WithFields(map[string]interface{}{"intent": "login"}).Info("dispatch")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "login", entry["intent"])
}

func TestWithFieldsEmptyReturnsSameLogger(t *testing.T) {
	l := &Logger{Logger: zerolog.New(&bytes.Buffer{})}
	assert.Same(t, l, l.WithFields(nil))
	assert.Same(t, l, l.With(map[string]interface{}{}))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.Debug("x")
		l.Infof("%d", 1)
	})
	assert.Equal(t, zerolog.NoLevel, l.GetLevel())
	assert.NotNil(t, l.WithFields(map[string]interface{}{"a": 1}))
}

func TestContextHelpers(t *testing.T) {
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
	assert.Nil(t, FromContext(context.Background()))

	ctx := context.Background()
	assert.Equal(t, ctx, NewContext(ctx, nil))

	l := &Logger{Logger: zerolog.New(&bytes.Buffer{})}
	ctx = NewContext(ctx, l)
	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, l, Ctx(ctx, nil))

	fallback := &Logger{Logger: zerolog.New(&bytes.Buffer{})}
	assert.Same(t, fallback, Ctx(context.Background(), fallback))
}
