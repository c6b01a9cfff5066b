package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/signalnine/metabench/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelError, logging.LevelFromString("ERROR"))
	assert.Equal(t, slog.LevelWarn, logging.LevelFromString("warning"))
	assert.Equal(t, slog.LevelDebug, logging.LevelFromString(" debug "))
	assert.Equal(t, slog.LevelInfo, logging.LevelFromString("bogus"))
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", "sample", "S1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "sample=S1")
}
