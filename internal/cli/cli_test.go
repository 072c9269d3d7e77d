package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/metakit/internal/device"
	cnserrors "github.com/born-ml/metakit/internal/errors"
)

// readings has device 1 busy and device 3 out of memory.
var readings = device.StaticEnumerator{
	{Index: 0, Utilization: 0.0, MemoryTotal: 16000, MemoryUsed: 100},
	{Index: 1, Utilization: 0.8, MemoryTotal: 16000, MemoryUsed: 100},
	{Index: 2, Utilization: 0.1, MemoryTotal: 16000, MemoryUsed: 2000},
	{Index: 3, Utilization: 0.0, MemoryTotal: 16000, MemoryUsed: 15000},
	{Index: 4, Utilization: 0.2, MemoryTotal: 16000, MemoryUsed: 0},
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := (&app{version: "test", enumerator: readings}).command()
	cmd.Writer = &out
	cmd.ErrWriter = &out
	err := cmd.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metakit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestGPUs_SingleProcess(t *testing.T) {
	out, err := run(t, "gpus", "--n", "3")
	require.NoError(t, err)
	assert.Equal(t, "0,2,4\n", out)
}

func TestGPUs_DefaultsFromConfig(t *testing.T) {
	out, err := run(t, "gpus")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	path := writeConfig(t, "device:\n  per_process: 2\n  max_utilization: 0.9\n")
	out, err = run(t, "--config", path, "gpus")
	require.NoError(t, err)
	assert.Equal(t, "0,1\n", out)
}

func TestGPUs_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "device:\n  max_utilization: 0.9\n")
	out, err := run(t, "--config", path, "gpus", "--n", "2", "--max-utilization", "0.5", "--max-memory", "0.99")
	require.NoError(t, err)
	assert.Equal(t, "0,2\n", out)
}

func TestGPUs_ZeroLimitsQualifyNothing(t *testing.T) {
	_, err := run(t, "gpus", "--max-utilization", "0", "--max-memory", "0")
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInsufficientResources))
}

func TestGPUs_WorldSize(t *testing.T) {
	out, err := run(t, "gpus", "--n", "1", "--world-size", "3")
	require.NoError(t, err)
	assert.Equal(t, "rank 0: 0\nrank 1: 2\nrank 2: 4\n", out)
}

func TestGPUs_Insufficient(t *testing.T) {
	_, err := run(t, "gpus", "--n", "4")
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInsufficientResources))
	assert.ErrorContains(t, err, "only 3 GPU(s) available but 4 GPU(s) are required")

	_, err = run(t, "gpus", "--n", "2", "--world-size", "2")
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInsufficientResources))
}

func TestLR(t *testing.T) {
	out, err := run(t, "lr", "--init", "0.1", "--epochs", "61")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 61)
	assert.Equal(t, "epoch=1 lr=0.1", lines[0])
	assert.Equal(t, "epoch=60 lr=0.1", lines[59])
	assert.Equal(t, "epoch=61 lr=0.02", lines[60])
}

func TestLR_InvalidEpochs(t *testing.T) {
	_, err := run(t, "lr", "--epochs", "0")
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
}

func TestMetaStep(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	out, err := run(t, "meta-step",
		"--run-id", "cli",
		"--epochs", "1",
		"--classes", "3",
		"--batch-size", "6",
		"--critic-hidden", "4",
		"--run-log", logPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "run=cli epoch=1 lr=0.1 "), out)

	logged, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, out, string(logged))
}

func TestMetaStep_InvalidOptions(t *testing.T) {
	_, err := run(t, "meta-step", "--classes", "1", "--run-log", filepath.Join(t.TempDir(), "run.log"))
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
}

func TestConfigErrors(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "lr")
	require.Error(t, err)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))

	path := writeConfig(t, "training:\n  bogus: 1\n")
	_, err = run(t, "--config", path, "lr")
	require.Error(t, err)
}

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, "", formatIDs(nil))
	assert.Equal(t, "3", formatIDs([]int{3}))
	assert.Equal(t, "0,2,5", formatIDs([]int{0, 2, 5}))
}
