package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("info")
	})

	SetLevel("info")
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetLevel("DEBUG")
	assert.Equal(t, "debug", Level())
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	SetLevel("verbose")
	assert.Equal(t, "info", Level())
}

func TestSetupFileWritesRotatingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.log")
	closer, err := SetupFile(RotateOptions{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)
	require.NotNil(t, closer)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		_ = closer.Close()
	})

	Infof("order applied code=%s", "000001")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "order applied code=000001")
}

func TestSetupFileEmptyPath(t *testing.T) {
	closer, err := SetupFile(RotateOptions{})
	assert.NoError(t, err)
	assert.Nil(t, closer)
}

func TestInfoBlockLogsEachLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("info")
	t.Cleanup(func() { SetOutput(os.Stdout) })

	InfoBlock("\n[APP]\n  env: test\n")
	out := buf.String()
	assert.Contains(t, out, "[APP]")
	assert.Contains(t, out, "env: test")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))

	buf.Reset()
	InfoBlock("   ")
	assert.Empty(t, buf.String())
}
