package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNew_JSON(t *testing.T) {
	logger, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	For(logger, "reconcile").WithField("kind", "payment").Debug("reconciled")

	out := buf.String()
	assert.Contains(t, out, `"component":"reconcile"`)
	assert.Contains(t, out, `"kind":"payment"`)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsync.log")
	w := Writer(Config{File: path, MaxSizeMB: 1, MaxBackups: 2})
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, lj.Filename)
	assert.Equal(t, 2, lj.MaxBackups)
}

func TestFor_NilFallsBack(t *testing.T) {
	assert.NotNil(t, For(nil, "sync"))
	Discard().Info("dropped")
}
