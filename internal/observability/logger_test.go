// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/formbridge/internal/config"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "formbridge"}, zapcore.AddSync(&buf))

	logger.Named("grid").Debug("row located")
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "formbridge.grid", entry["logger"])
	assert.Equal(t, "row located", entry["msg"])
}

func TestNewLogger_ConsoleColors(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "formbridge",
		Colors:      config.ColorConfig{Info: "green"},
	}
	logger := NewLogger(cfg, zapcore.AddSync(&buf))
	logger.Info("batch complete")
	logger.Debug("dropped below level")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, colorGreen+"INFO"+colorReset)
	assert.Contains(t, out, "formbridge.")
	assert.Contains(t, out, "batch complete")
	assert.NotContains(t, out, "dropped below level")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggerConfig{Level: "verbose", Format: "json"}, zapcore.AddSync(&buf))
	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_FileSink(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "formbridge.log")
	var console bytes.Buffer
	logger := NewLogger(config.LoggerConfig{Level: "info", Format: "console", LogFile: logFile, MaxSize: 1}, zapcore.AddSync(&console))
	logger.Info("written to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "written to file", entry["msg"])
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.AddSync(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, zapcore.AddSync(&second))

	GetLogger().Info("hello")
	Sync()

	assert.Contains(t, first.String(), `"logger":"first"`)
	assert.Empty(t, second.String())
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	logger := GetLogger()
	require.NotNil(t, logger)
}
