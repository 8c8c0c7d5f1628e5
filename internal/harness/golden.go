package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/moon/internal/value"
)

// Snapshot renders a scenario trace as canonical JSON:
//
//	{"scenario": name, "trace": [{"step", "op", "input", "result"|"error"}, ...]}
//
// Arrays are written as index-keyed objects, the same shape dispatch uses
// for sequences.
func Snapshot(name string, result *Result) ([]byte, error) {
	return value.MarshalCanonical(snapshotValue(name, result))
}

// TraceDigest identifies a trace by content: equal digests mean equal
// Snapshot bytes.
func TraceDigest(name string, result *Result) (string, error) {
	return value.Digest(value.DomainTrace, snapshotValue(name, result))
}

func snapshotValue(name string, result *Result) value.Object {
	events := make([]value.Value, len(result.Trace))
	for i, ev := range result.Trace {
		events[i] = ev.toValue()
	}
	return value.Object{
		"scenario": value.String(name),
		"trace":    value.Seq(events...),
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
