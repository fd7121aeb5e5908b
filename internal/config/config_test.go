package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, "workers: 8\nsampleInterval: 250ms\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.SampleInterval.Std())
	// Everything untouched keeps its default.
	assert.Equal(t, Default().RingCapacity, cfg.RingCapacity)
	assert.Equal(t, Default().LogCapacity, cfg.LogCapacity)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
workers: 2
ringCapacity: 64
logCapacity: 500
slabObjectSize: 128
slabBlockSize: 4096
metricsAddr: ":9090"
sampleInterval: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 64, cfg.RingCapacity)
	assert.Equal(t, 500, cfg.LogCapacity)
	assert.Equal(t, 128, cfg.SlabObjectSize)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 2*time.Second, cfg.SampleInterval.Std())
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "wrokers: 8\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	cases := []string{
		"workers: -1\n",
		"ringCapacity: 1\n",
		"logCapacity: -5\n",
		"slabObjectSize: 8192\n", // larger than the default block size
		"sampleInterval: 1ms\n",
	}
	for _, body := range cases {
		path := writeConfig(t, body)
		_, err := Load(path)
		assert.Error(t, err, "config %q accepted", body)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SlabBlockSize = cfg.SlabObjectSize - 1
	assert.Error(t, cfg.Validate())
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000`)))
	assert.Equal(t, time.Millisecond, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"not a duration"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
