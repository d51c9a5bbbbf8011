package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.WithTag("analysis").Warn("上游调用失败", map[string]interface{}{
		"attempt": 2,
	}, errors.New("model overloaded"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "上游调用失败", entry["message"])
	require.Equal(t, "warning", entry["level"])
	require.Equal(t, "analysis", entry["tag"])
	require.EqualValues(t, 2, entry["attempt"])
	require.Equal(t, "model overloaded", entry["error"])
}

func TestLoggerFormatsArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info("已加载 %d 个提供者", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "已加载 3 个提供者", entry["message"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "debug", parseLevel("DEBUG").String())
	require.Equal(t, "warning", parseLevel("warn").String())
	require.Equal(t, "info", parseLevel("unknown").String())
}
