package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"hostellite/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	app := config.AppConfig{Name: "hostellite-test", Environment: "test", Version: "1.0.0"}

	tests := []struct {
		name       string
		cfg        config.LoggingConfig
		wantCloser bool
		wantErr    bool
	}{
		{name: "default stderr", cfg: config.LoggingConfig{}},
		{name: "stdout", cfg: config.LoggingConfig{Level: "debug", Output: "stdout"}},
		{name: "console", cfg: config.LoggingConfig{Level: "warn", Format: "console"}},
		{name: "file in new directory", cfg: config.LoggingConfig{Output: "file", FilePath: filepath.Join(t.TempDir(), "logs", "client.log")}, wantCloser: true},
		{name: "file without path", cfg: config.LoggingConfig{Output: "file"}, wantErr: true},
		{name: "unknown output", cfg: config.LoggingConfig{Output: "syslog"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := New(tt.cfg, app)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
			if !tt.wantCloser {
				assert.Nil(t, closer)
				return
			}
			require.NotNil(t, closer)
			require.NoError(t, closer.Close())
			_, err = os.Stat(tt.cfg.FilePath)
			assert.NoError(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base, _, err := New(config.LoggingConfig{Level: "info"}, config.AppConfig{Name: "hostellite"})
	require.NoError(t, err)

	out := base.Output(&buf)
	Component(&out, "booking").Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"booking"`)
	assert.Contains(t, buf.String(), `"app":"hostellite"`)
	assert.NotContains(t, buf.String(), `"env"`, "empty app fields are omitted")

	assert.NotPanics(t, func() {
		Component(nil, "nop").Info().Msg("dropped")
	})
}
