package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput("warn", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	_, err = New("loud", "json")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput("info", "json", &buf)
	require.NoError(t, err)

	LogError(logger, "history", "Record", "durable write", map[string]int{"total": 4}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "history", entry["module"])
	assert.Equal(t, "Record", entry["funcName"])
	assert.NotNil(t, entry["data"])
}
