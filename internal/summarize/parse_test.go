package summarize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponseStrict(t *testing.T) {
	raw := `{"summary": "You focused well.", "focus_score": 82, "state": "productive"}`

	a, err := parseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "You focused well.", a.Summary)
	require.NotNil(t, a.FocusScore)
	require.Equal(t, 82, *a.FocusScore)
	require.Equal(t, "productive", a.State)
}

func TestParseResponseStripsWrapperProse(t *testing.T) {
	raw := "Sure! Here is the analysis:\n```json\n" +
		`{"summary": "Mostly coding.", "focus_score": 70}` +
		"\n```\nLet me know if you need more."

	a, err := parseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "Mostly coding.", a.Summary)
	require.Equal(t, 70, *a.FocusScore)
}

func TestParseResponseRecoversSummaryAlone(t *testing.T) {
	// Malformed JSON (trailing comma) but the summary field is intact,
	// escapes included.
	raw := `{"summary": "She said \"hi\" twice.", "focus_score": ,}`

	a, err := parseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, `She said "hi" twice.`, a.Summary)
	require.Nil(t, a.FocusScore)
}

func TestParseResponseMissingScoreIsNil(t *testing.T) {
	a, err := parseResponse(`{"summary": "ok"}`)
	require.NoError(t, err)
	require.Nil(t, a.FocusScore)
}

func TestParseResponseFailures(t *testing.T) {
	for _, raw := range []string{
		"",
		"I had trouble analyzing that.",
		`{"focus_score": 50}`,
		`{"summary": ""}`,
	} {
		_, err := parseResponse(raw)
		require.Error(t, err, "raw=%q", raw)
	}
}
