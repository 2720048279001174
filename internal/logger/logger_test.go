package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan-service/internal/config"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrscan.log")
	log, closer := New(config.LogConfig{Level: "debug", Format: "json", File: path})

	log.Info().Str("scanner_id", "abc").Msg("camera started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scanner_id":"abc"`)
	assert.Contains(t, string(data), `"service":"qrscan"`)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNewUnknownLevel(t *testing.T) {
	log, closer := New(config.LogConfig{Level: "chatty", Format: "console"})
	defer closer.Close()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
