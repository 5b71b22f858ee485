package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogrusAdapter(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		format      string
		expectLevel logrus.Level
		expectJSON  bool
	}{
		{name: "debug text", level: "debug", format: "text", expectLevel: logrus.DebugLevel},
		{name: "info json", level: "info", format: "json", expectLevel: logrus.InfoLevel, expectJSON: true},
		{name: "upper case level", level: "WARN", format: "text", expectLevel: logrus.WarnLevel},
		{name: "upper case format", level: "error", format: "JSON", expectLevel: logrus.ErrorLevel, expectJSON: true},
		{name: "invalid level falls back to info", level: "loud", format: "text", expectLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogrusAdapter(tt.level, tt.format)
			adapter, ok := logger.(*LogrusAdapter)
			require.True(t, ok)
			assert.Equal(t, tt.expectLevel, adapter.logger.Level)

			_, isJSON := adapter.logger.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.expectJSON, isJSON)
		})
	}
}

func TestNewLogrusAdapterFromLogger_Nil(t *testing.T) {
	logger := NewLogrusAdapterFromLogger(nil)
	require.NotNil(t, logger)
	logger.Info("still works")
}

func TestLogrusAdapter_JSONFields(t *testing.T) {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	var buf bytes.Buffer
	base.SetOutput(&buf)

	logger := NewLogrusAdapterFromLogger(base).
		WithField(FieldComponent, "matcher").
		WithError(errors.New("claim lost"))
	logger.Warn("retrying selection", F(FieldPaymentID, "p-1"), F(FieldCandidates, 2))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "retrying selection", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "matcher", entry[FieldComponent])
	assert.Equal(t, "p-1", entry[FieldPaymentID])
	assert.Equal(t, float64(2), entry[FieldCandidates])
	assert.Equal(t, "claim lost", entry["error"])
}

func TestLogrusAdapter_LevelFiltering(t *testing.T) {
	adapter := NewLogrusAdapter("warn", "text").(*LogrusAdapter)
	var buf bytes.Buffer
	adapter.SetOutput(&buf)

	adapter.Debug("hidden")
	adapter.Info("hidden too")
	assert.Empty(t, buf.String())

	adapter.Error("visible", F(FieldFingerprint, "abc"))
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "fingerprint=abc")
}

func TestMockLogger_DerivedLoggersShareEntries(t *testing.T) {
	mock := NewMockLogger()
	derived := mock.WithFields(F(FieldFingerprint, "fp")).WithField(FieldMethod, "ocr")
	derived.Info("extracted")
	mock.Debug("root")

	entries := mock.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, []Field{{FieldFingerprint, "fp"}, {FieldMethod, "ocr"}}, entries[0].Fields)
	assert.True(t, mock.HasEntry("DEBUG", "root"))
	assert.Len(t, mock.EntriesByLevel("INFO"), 1)
}

func TestMockLogger_ConcurrentRecording(t *testing.T) {
	mock := NewMockLogger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			mock.WithField(FieldCount, n).Info("tick")
		}(i)
	}
	wg.Wait()
	assert.Len(t, mock.Entries(), 50)
}

func TestMockLogger_WithErrorIsRecorded(t *testing.T) {
	mock := NewMockLogger()
	boom := errors.New("boom")
	mock.WithError(boom).Error("failed")

	entries := mock.EntriesByLevel("ERROR")
	require.Len(t, entries, 1)
	assert.Equal(t, boom, entries[0].Error)
}
