package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `// some Go source file
/* +++ ENV / RUNTIME +++ */
flow_table_capacity: 4096
anomaly_log_path: /var/log/flowan/anomaly.log
log_level: debug
/* --- DO NOT EDIT --- */

package main
`

func TestLoad_ParsesBlockBetweenMarkers(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleSource))
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.FlowTableCapacity)
	assert.Equal(t, "/var/log/flowan/anomaly.log", cfg.AnomalyLogPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NoBlockReturnsZeroValue(t *testing.T) {
	cfg, err := Load(strings.NewReader("package main\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoad_UnterminatedBlockErrors(t *testing.T) {
	_, err := Load(strings.NewReader(blockStart + "\nlog_level: debug\n"))
	assert.Error(t, err)
}

func TestApplyEnv_OverridesLoadedValue(t *testing.T) {
	cfg, err := Load(strings.NewReader(sampleSource))
	require.NoError(t, err)

	t.Setenv("FLOWAN_LOG_LEVEL", "trace")
	t.Setenv("FLOWAN_FLOW_TABLE_CAPACITY", "8192")

	cfg = ApplyEnv(cfg)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, 8192, cfg.FlowTableCapacity)
	assert.Equal(t, "/var/log/flowan/anomaly.log", cfg.AnomalyLogPath, "untouched keys survive ApplyEnv")
}

func TestMerge_FillsOnlyZeroFields(t *testing.T) {
	cfg := Config{LogLevel: "warn"}
	merged := merge(cfg, Defaults())
	assert.Equal(t, "warn", merged.LogLevel)
	assert.Equal(t, Defaults().FlowTableCapacity, merged.FlowTableCapacity)
	assert.Equal(t, Defaults().DaemonAddr, merged.DaemonAddr)
}

func TestResolve_MissingPathStillAppliesEnvAndDefaults(t *testing.T) {
	t.Setenv("FLOWAN_DAEMON_PORT", "9000")
	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.DaemonPort)
	assert.Equal(t, Defaults().LogLevel, cfg.LogLevel)
}
