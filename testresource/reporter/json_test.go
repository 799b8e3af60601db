package reporter_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmrtest/pmrtest/testresource/reporter"
)

func TestJSONReporterEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf)

	r.Allocation(reporter.Snapshot{Name: "heap", BlocksInUse: 1}, reporter.Event{
		Index: 0, Address: 0x10, Size: 16, Alignment: 8,
	})
	r.Release(reporter.Snapshot{Name: "heap", BlocksInUse: 0})

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &obj))
		lines = append(lines, obj)
	}
	require.Len(t, lines, 2)

	require.Equal(t, "allocation", lines[0]["event"])
	require.Equal(t, "heap", lines[0]["name"])
	require.InEpsilon(t, float64(16), lines[0]["size"], 0)

	require.Equal(t, "release", lines[1]["event"])
	require.Equal(t, false, lines[1]["leak"])
}

func TestJSONReporterReleaseFlagsLeak(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf)

	r.Release(reporter.Snapshot{BlocksInUse: 3})

	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	require.Equal(t, true, obj["leak"])
}

func TestJSONReporterInvalidBlockIncludesCauses(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf)

	r.InvalidBlock(reporter.Snapshot{}, reporter.InvalidBlockReport{
		Event:  reporter.Event{Size: 8},
		Causes: []reporter.InvalidBlockCause{reporter.CauseOverrun, reporter.CauseSizeMismatch},
	})

	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	causes, ok := obj["causes"].([]any)
	require.True(t, ok)
	require.Len(t, causes, 2)
}
