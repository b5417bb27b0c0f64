package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false, "")

	log.Debug("hidden")
	log.Info("upload_finalized", "file_id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "upload_finalized", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "abc", entry["file_id"])
	assert.Equal(t, "filemeta", entry["service"])
}

func TestNew_DevelopmentText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true, "")

	log.Debug("probe_skipped", "reason", "not_image")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "msg=probe_skipped")
	assert.Contains(t, out, "reason=not_image")
}

func TestNewProtocol_ProductionDropsRequestLog(t *testing.T) {
	var buf bytes.Buffer
	log := NewProtocol(&buf, false)

	log.Info("RequestIncoming", "method", "PATCH")
	log.Warn("UploadInterrupted", "id", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "UploadInterrupted", entry["msg"])
	assert.Equal(t, "tusd", entry["component"])
	assert.Equal(t, "filemeta", entry["service"])
}

func TestNewProtocol_DevelopmentText(t *testing.T) {
	var buf bytes.Buffer
	log := NewProtocol(&buf, true)

	log.Info("RequestIncoming", "method", "POST")

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "msg=RequestIncoming")
	assert.Contains(t, out, "component=tusd")
}
