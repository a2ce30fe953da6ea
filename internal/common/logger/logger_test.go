package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"kind": "budget"})

	log.Info("submission finished", map[string]interface{}{
		"status":        201,
		"authorization": "Bearer abc",
		"client_secret": "s3cr3t",
		"error":         errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "budget", fields["kind"])
	assert.Equal(t, int64(201), fields["status"])
	assert.Equal(t, "[redacted]", fields["authorization"])
	assert.Equal(t, "[redacted]", fields["client_secret"])
	assert.Equal(t, "boom", fields["error"])
}

func TestZapAdapter_WithError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("dropped", nil)
	log.WithError(errors.New("portal down")).Warn("lookup failed", nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "portal down", entries[0].ContextMap()["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_FallsBackToNop(t *testing.T) {
	l := New("info", "json", "/nonexistent-dir/portal.log")
	assert.NotNil(t, l)
}
