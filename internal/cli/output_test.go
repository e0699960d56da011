package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError_MessageAndUnwrap(t *testing.T) {
	base := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to load manifest", base)

	assert.Equal(t, "failed to load manifest: no such file", err.Error())
	assert.ErrorIs(t, err, base)

	bare := NewExitError(ExitFailure, "2 run, 1 passed, 1 failed, 0 errored")
	assert.Equal(t, "2 run, 1 passed, 1 failed, 0 errored", bare.Error())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "tests failed")))

	// Wrapped ExitError still yields its code.
	wrapped := fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))

	// Unknown errors default to plain failure.
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("mystery")))
}

func TestOutputFormatter_Text(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success("all good"))
	assert.Contains(t, buf.String(), "all good")

	buf.Reset()
	require.NoError(t, f.Error("bad manifest"))
	assert.Equal(t, "Error: bad manifest\n", buf.String())
}

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]any{"suites": 2}))
	var ok Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &ok))
	assert.Equal(t, "ok", ok.Status)

	buf.Reset()
	require.NoError(t, f.Error("bad manifest"))
	var bad Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bad))
	assert.Equal(t, "error", bad.Status)
	assert.Equal(t, "bad manifest", bad.Error)
}
