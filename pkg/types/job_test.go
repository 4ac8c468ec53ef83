package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintIgnoresIDFields(t *testing.T) {
	base := JobItem{Verb: "RUN", Args: map[string]interface{}{"command": "echo hi"}}

	a := base
	a.JobID = "aaaa"
	a.JobSHA3224 = "ignored"
	a.ParentID = "parent-a"

	b := base
	b.JobID = "bbbb"
	b.ParentID = "parent-b"

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	require.Equal(t, fpA, fpB)
	require.Len(t, fpA, 56) // SHA3-224 -> 28 bytes -> 56 hex chars
}

func TestFingerprintDiffersOnContent(t *testing.T) {
	a := JobItem{Verb: "RUN", Args: map[string]interface{}{"command": "echo hi"}}
	b := JobItem{Verb: "RUN", Args: map[string]interface{}{"command": "echo bye"}}

	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)

	require.NotEqual(t, fpA, fpB)
}

func TestJobItemJSONRoundtripPreservesArgs(t *testing.T) {
	item := JobItem{
		JobID: "job-1",
		Verb:  "RUN",
		Args:  map[string]interface{}{"command": "uptime", "timeout": float64(30)},
	}
	data, err := item.MarshalJSON()
	require.NoError(t, err)

	var decoded JobItem
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.Equal(t, "job-1", decoded.JobID)
	require.Equal(t, "uptime", decoded.Args["command"])
}

func TestEffectiveTimeoutDefault(t *testing.T) {
	item := JobItem{}
	require.Equal(t, DefaultTimeout, int(item.EffectiveTimeout().Seconds()))
}

func TestControlIsTerminal(t *testing.T) {
	require.True(t, ControlJobEnd.IsTerminal())
	require.True(t, ControlJobFailed.IsTerminal())
	require.False(t, ControlJobProcessing.IsTerminal())
}
