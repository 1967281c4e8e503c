package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestInit_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := initWithWriter(config.LogConfig{Level: "info", Format: "json"}, "server", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Info().Str("k", "v").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "server", entry["component"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "v", entry["k"])
}

func TestRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	assert.NotEmpty(t, id)
	assert.Equal(t, id, RequestID(ctx))

	ctx, id = WithRequestID(context.Background(), "fixed")
	assert.Equal(t, "fixed", id)
	assert.Equal(t, "fixed", RequestID(ctx))

	assert.Empty(t, RequestID(context.Background()))
}
