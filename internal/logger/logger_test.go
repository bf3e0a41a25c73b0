package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestWithFieldStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithField("component", "fetcher").Infof("fetched %d days", 5)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "fetched 5 days", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	child := log.WithFields(map[string]interface{}{"request_id": "abc"})
	child.Info("child line")
	log.Info("parent line")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var parent map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &parent))
	_, hasField := parent["request_id"]
	assert.False(t, hasField)
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("chatty", &buf)

	log.Debug("hidden")
	log.Info("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}
