package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewFromCore(core)

	log.Info("PIPELINE", "Query started", map[string]interface{}{"pane": "left"})
	log.Error("PIPELINE", "Query failed", map[string]interface{}{"error": "boom"})
	log.Debug("PIPELINE", "No details", nil)

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, "Query started", entries[0].Message)
	assert.Equal(t, "PIPELINE", entries[0].ContextMap()["module"])
	assert.Equal(t, map[string]interface{}{"pane": "left"}, entries[0].ContextMap()["details"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error_ref"])
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.Warn("X", "ignored", nil)
	assert.NoError(t, log.Sync())
}
