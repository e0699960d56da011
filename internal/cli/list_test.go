package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strand/internal/harness"
)

func execList(t *testing.T, format string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewListCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(nil)
	err := cmd.Execute()
	return buf.String(), err
}

func TestList_TextOutput(t *testing.T) {
	registerSuite(t, (&harness.Suite{Name: "integration"}).Add(
		harness.MustAsync(func(c *harness.Case) error { return nil },
			harness.Named("slowQuery"), harness.Timeout(500*time.Millisecond)),
		harness.MustAsync(func() error { return nil }, harness.Named("syncCheck")),
	))

	out, err := execList(t, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "integration (2 tests)")
	assert.Contains(t, out, "slowQuery")
	assert.Contains(t, out, "async")
	assert.Contains(t, out, "timeout=500ms")
	assert.Contains(t, out, "syncCheck")
	assert.Contains(t, out, "sync")
}

func TestList_JSONOutput(t *testing.T) {
	registerSuite(t, (&harness.Suite{Name: "integration"}).Add(
		harness.MustAsync(func(c *harness.Case) error { return nil }, harness.Named("slowQuery")),
	))

	out, err := execList(t, "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			Name  string `json:"name"`
			Tests []struct {
				Name        string `json:"name"`
				Suspendable bool   `json:"suspendable"`
			} `json:"tests"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "integration", resp.Data[0].Name)
	require.Len(t, resp.Data[0].Tests, 1)
	assert.Equal(t, "slowQuery", resp.Data[0].Tests[0].Name)
	assert.True(t, resp.Data[0].Tests[0].Suspendable)
}

func TestList_EmptyRegistry(t *testing.T) {
	harness.ClearRegistryForTesting()
	t.Cleanup(harness.ClearRegistryForTesting)

	out, err := execList(t, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "no suites registered")
}
