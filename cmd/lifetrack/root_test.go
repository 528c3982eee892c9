package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/lifetrack/report"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "lifetrack")
}

func TestDemo_Text(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := execute(t, "demo")
	require.NoError(t, err)
	require.Contains(t, out, "[scoped]")
	require.Contains(t, out, "DatabaseConnection")
	require.Contains(t, out, "CacheManager")
	require.Contains(t, out, "ModelLoader")
}

func TestDemo_JSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := execute(t, "demo", "--format", "json", "--id-scheme", "global")
	require.NoError(t, err)

	rep, err := report.Read(bytes.NewBufferString(out), report.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 3, rep.Stats.TotalClasses)
	require.Equal(t, uint64(6), rep.Stats.TotalInstances)
}

func TestStress_EnvConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIFETRACK_STRESS_WORKERS", "2")
	t.Setenv("LIFETRACK_STRESS_PER_WORKER", "10")

	out, _, err := execute(t, "stress", "--close-ratio", "1", "--format", "yaml")
	require.NoError(t, err)

	rep, err := report.Read(bytes.NewBufferString(out), report.FormatYAML)
	require.NoError(t, err)
	require.Len(t, rep.Stats.Classes, 1)
	require.Equal(t, "Job", rep.Stats.Classes[0].ClassName)
	require.Equal(t, uint64(20), rep.Stats.Classes[0].TotalCreated)
	require.Equal(t, uint64(20), rep.Stats.Classes[0].TotalDeleted)
}

func TestTraceFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, errOut, err := execute(t, "demo", "--trace", "--format", "cbor")
	require.NoError(t, err)
	require.Contains(t, errOut, "lifetrack.global_stats")
}

func TestInvalidFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, _, err := execute(t, "demo", "--format", "xml")
	require.ErrorContains(t, err, `unknown format "xml"`)
}
