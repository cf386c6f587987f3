package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/logx"
)

func TestInitWritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(LogOption{Format: "json", LogDir: dir, Level: "debug"}))

	Infof("hello %s", "geyser")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello geyser")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(LogOption{Level: "verbose"})
	assert.Error(t, err)
}

func TestInitRoutesLogxToLogDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(LogOption{Format: "json", LogDir: dir, Level: "info"}))

	logx.WithContext(context.Background()).WithFields(logx.Field("component", "tx_processor")).
		Infof("event %d", 7)
	logx.Debugf("hidden debug line")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "event 7")
	assert.Contains(t, string(data), `"component":"tx_processor"`)
	assert.NotContains(t, string(data), "hidden debug line")
}

func TestLogxLevel(t *testing.T) {
	assert.Equal(t, logx.DebugLevel, logxLevel("DEBUG"))
	assert.Equal(t, logx.InfoLevel, logxLevel(""))
	assert.Equal(t, logx.ErrorLevel, logxLevel("warn"))
}
