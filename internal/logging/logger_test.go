package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fieldbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testApp = config.AppConfig{Name: "fieldbook", Environment: "test", Version: "0.1.0"}

func TestNew_Outputs(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.LoggingConfig
		wantCloser bool
		wantErr    bool
	}{
		{name: "default", cfg: config.LoggingConfig{}},
		{name: "stderr console", cfg: config.LoggingConfig{Output: "stderr", Format: "console"}},
		{name: "file", cfg: config.LoggingConfig{Output: "file", FilePath: "app.log"}, wantCloser: true},
		{name: "both", cfg: config.LoggingConfig{Output: "Both", FilePath: "app.log"}, wantCloser: true},
		{name: "file without path", cfg: config.LoggingConfig{Output: "file"}, wantErr: true},
		{name: "unknown output", cfg: config.LoggingConfig{Output: "syslog"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg.FilePath != "" {
				cfg.FilePath = filepath.Join(t.TempDir(), cfg.FilePath)
			}
			logger, closer, err := New(cfg, testApp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			if !tt.wantCloser {
				assert.Nil(t, closer)
				return
			}
			require.NotNil(t, closer)
			require.NoError(t, closer.Close())
			assert.FileExists(t, cfg.FilePath)
		})
	}
}

func TestNew_FileFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldbook.log")
	logger, closer, err := New(config.LoggingConfig{Level: "WARN", Output: "file", FilePath: path}, testApp)
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	logger.Warn().Str("field_id", "f-1").Msg("kept")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "fieldbook", entry["app"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "f-1", entry["field_id"])
	assert.NotContains(t, entry, "caller")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel(" Debug "))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(&base, "sync").Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"sync"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
