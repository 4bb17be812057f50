package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunClosesRunnerBeforeExit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "closed_loop.log")
	dbPath := filepath.Join(dir, "cycles.db")
	cfg := RunnerConfig{
		ConfigPath:   writeFile(t, "vehicle.json", `{"sensor_wait_ms": 0, "cycle_ms": 5}`),
		ScenarioPath: writeFile(t, "scen.json", `{"timing": {"duration_s": 0.05}, "defaults": {"front": 2000, "f_left": 250, "f_right": 250, "b_left": 250, "b_right": 250}}`),
		DryRun:       true,
		RecordPath:   dbPath,
	}

	require.Equal(t, 0, run(cfg, logPath, "info"))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Scenario complete")
	assert.Contains(t, string(data), "cycles=", "recorder summary is logged on close")
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestRunReportsStartupFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "closed_loop.log")
	cfg := RunnerConfig{
		ScenarioPath: writeFile(t, "scen.json", `{"timing": {"duration_s": 0}}`),
		DryRun:       true,
	}

	assert.Equal(t, 1, run(cfg, logPath, "info"))
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Startup failed")
}
