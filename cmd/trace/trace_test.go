package main

import (
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"time":"2024-05-01T12:00:00Z","type":"BLOCK_POSTCONDITION","source":"entry","target":0,"payload":"True","first":true}
{"time":"2024-05-01T12:00:00.001Z","type":"STALE","source":"check","target":0,"payload":"true/0"}
{"time":"2024-05-01T12:00:00.002Z","type":"FOUND_RESULT","source":"result","target":0,"payload":"safe"}
`

func TestTrace(t *testing.T) {
	color.Disable()
	var out strings.Builder
	require.NoError(t, trace(&out, strings.NewReader(sample), ""))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "entry")
	assert.Contains(t, lines[0], "(seed)")
	assert.Contains(t, lines[2], "2ms")
	assert.Equal(t, "3 messages", lines[3])
}

func TestTraceFilter(t *testing.T) {
	var out strings.Builder
	require.NoError(t, trace(&out, strings.NewReader(sample), "check"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "STALE")
}

func TestTraceMalformed(t *testing.T) {
	var out strings.Builder
	assert.Error(t, trace(&out, strings.NewReader("{not json}\n"), ""))
}
