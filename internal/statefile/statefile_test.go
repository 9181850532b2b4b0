package statefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attune-sh/attune/internal/classify"
	"github.com/attune-sh/attune/internal/summarize"
)

func TestLoadMissingIsNotAnError(t *testing.T) {
	f := New(t.TempDir())

	st, err := f.Load()
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := New(dir)

	saved := &State{
		Mode: "study",
		Hourly: &summarize.Summary{
			Text:        "an hour of focused work",
			FocusScore:  82,
			GeneratedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			PeriodLabel: "09:00-10:00",
			Source:      summarize.SourceLLM,
			State:       classify.StateProductive,
			Mode:        "study",
		},
	}
	require.NoError(t, f.Save(saved))
	require.False(t, saved.UpdatedAt.IsZero())

	loaded, err := f.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "study", loaded.Mode)
	require.NotNil(t, loaded.Hourly)
	require.Equal(t, 82, loaded.Hourly.FocusScore)
	require.Nil(t, loaded.Daily)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	f := New(dir)

	require.NoError(t, f.Save(&State{Mode: "chill"}))
	require.FileExists(t, filepath.Join(dir, "state.json"))
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0644))

	_, err := New(dir).Load()
	require.Error(t, err)
}
