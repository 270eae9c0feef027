package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMain(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCENE_CONFIG", filepath.Join(dir, "config"))

	out, _, err := runMain(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Available commands:")

	out, _, err = runMain(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "scene version "+version+"\n", out)

	_, stderr, err := runMain(t, "bogus")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Unknown command: bogus")

	_, _, err = runMain(t, "render", "-h")
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, _, err = runMain(t, "config", "render.frames", "2")
	require.NoError(t, err)
	out, _, err = runMain(t, "config", "render.frames")
	require.NoError(t, err)
	assert.Equal(t, "render.frames: 2\n", out)

	script := filepath.Join(dir, "hello.js")
	require.NoError(t, os.WriteFile(script, []byte(`
		const { createRoot, createElement: h } = require('scene:react');
		createRoot('hud').render(h('text', { name: 'greeting' }, 'hello'));
	`), 0644))
	out, _, err = runMain(t, "render", "-tick", "1ms", script)
	require.NoError(t, err)
	assert.Contains(t, out, `"hello"`)
}
