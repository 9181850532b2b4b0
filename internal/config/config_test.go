package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "127.0.0.1:5612", cfg.ListenAddr)
	require.Equal(t, 5600, cfg.Tracker.Port)
	require.Equal(t, 11434, cfg.LLM.Port)
	require.Equal(t, 75, cfg.Classify.HighThreshold)
	require.Equal(t, 60, cfg.Classify.MidThreshold)
	require.Equal(t, 40, cfg.Classify.LowThreshold)
	require.Equal(t, 5*time.Minute, cfg.Modes.Study.Interval)
	require.Equal(t, 45*time.Minute, cfg.Nudges.Productive)
	require.Equal(t, 5*time.Minute, cfg.Nudges.Unproductive)
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen_addr: "127.0.0.1:9999"
llm:
  model: qwen2.5
classify:
  high_threshold: 80
modes:
  study:
    interval: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
	require.Equal(t, "qwen2.5", cfg.LLM.Model)
	require.Equal(t, 80, cfg.Classify.HighThreshold)
	require.Equal(t, 2*time.Minute, cfg.Modes.Study.Interval)

	// Untouched keys keep their defaults.
	require.Equal(t, 5600, cfg.Tracker.Port)
	require.Equal(t, 60, cfg.Classify.MidThreshold)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestBaseURLs(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "http://localhost:5600", cfg.TrackerBaseURL())
	require.Equal(t, "http://localhost:11434", cfg.LLMBaseURL())
}

func TestContextFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StudyFocus = "linear algebra"
	cfg.CoachTask = "ship the release"
	cfg.UserContext = "freelance developer"

	require.Contains(t, cfg.ContextFor("study"), "linear algebra")
	require.Contains(t, cfg.ContextFor("coach"), "ship the release")
	require.Contains(t, cfg.ContextFor("chill"), "freelance developer")
}
