package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.Device.MaxUtilization)
	assert.Equal(t, 10*time.Second, cfg.Device.SMITimeout)
	assert.Equal(t, 0.5, cfg.Device.Limits().MaxMemoryUsage)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metakit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  max_utilization: 0.8
  smi_timeout: 3s
training:
  epochs: 200
run_log: /tmp/run.log
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Device.MaxUtilization)
	assert.Equal(t, 0.5, cfg.Device.MaxMemoryUsage)
	assert.Equal(t, 3*time.Second, cfg.Device.SMITimeout)
	assert.Equal(t, 200, cfg.Training.Epochs)
	assert.Equal(t, 0.1, cfg.Training.InitLR)
	assert.Equal(t, "/tmp/run.log", cfg.RunLog)
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "device:\n  gpus: 2\n",
		"bad type":         "training:\n  epochs: many\n",
		"out of range":     "device:\n  max_utilization: 1.5\n",
		"too few classes":  "training:\n  classes: 1\n",
		"small batch":      "training:\n  batch_size: 3\n",
		"negative meta lr": "training:\n  meta_lr: -0.1\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
}
