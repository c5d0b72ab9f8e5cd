package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProdUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "prod", "debug")
	log.WithField("channel_id", "abc").Info("allocated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "allocated", line["message"])
	assert.Equal(t, "info", line["severity"])
	assert.Equal(t, "abc", line["channel_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_UnknownLevelFallsBack(t *testing.T) {
	log := New("dev", "chatty")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, ok := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
