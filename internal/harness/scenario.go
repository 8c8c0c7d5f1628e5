package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// PrevRef in a match operand is replaced by the previous step's result.
const PrevRef = "$prev"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup records are inserted before the first step and do not appear
	// in the trace.
	Setup []SetupRecord `yaml:"setup,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final store contents.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SetupRecord is a record inserted before the steps run.
type SetupRecord struct {
	Collection string `yaml:"collection"`
	ID         string `yaml:"id"`
	Value      any    `yaml:"value"`
}

// Step is one operation. Exactly one of the operation fields is set.
type Step struct {
	Match  *MatchStep  `yaml:"match,omitempty"`
	Exec   any         `yaml:"exec,omitempty"`
	Insert *InsertStep `yaml:"insert,omitempty"`
	Delete *RecordRef  `yaml:"delete,omitempty"`
	Remove string      `yaml:"remove,omitempty"`
	Watch  string      `yaml:"watch,omitempty"`

	// Expect validates the step outcome. If nil, the step must not fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// MatchStep is a single dispatch step.
type MatchStep struct {
	Left  string `yaml:"left"`
	Right any    `yaml:"right"`
}

// InsertStep upserts a record.
type InsertStep struct {
	Collection string `yaml:"collection"`
	ID         string `yaml:"id"`
	Value      any    `yaml:"value"`
}

// RecordRef addresses a record.
type RecordRef struct {
	Collection string `yaml:"collection"`
	ID         string `yaml:"id"`
}

// Op names the operation a step runs.
func (s Step) Op() string {
	switch {
	case s.Match != nil:
		return OpMatch
	case s.Exec != nil:
		return OpExec
	case s.Insert != nil:
		return OpInsert
	case s.Delete != nil:
		return OpDelete
	case s.Remove != "":
		return OpRemove
	case s.Watch != "":
		return OpWatch
	}
	return ""
}

func (s Step) opCount() int {
	n := 0
	for _, set := range []bool{
		s.Match != nil, s.Exec != nil, s.Insert != nil,
		s.Delete != nil, s.Remove != "", s.Watch != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// Step operation names, as they appear in traces.
const (
	OpMatch  = "match"
	OpExec   = "exec"
	OpInsert = "insert"
	OpDelete = "delete"
	OpRemove = "remove"
	OpWatch  = "watch"
)

// ExpectClause specifies the expected outcome of a step: either a value
// or an error code, never both.
type ExpectClause struct {
	// Value is the expected result. HasValue distinguishes an explicit
	// null from an absent value.
	Value    any  `yaml:"-"`
	HasValue bool `yaml:"-"`

	// Error is the expected RuntimeError code (e.g. "UNKNOWN_CALL").
	Error string `yaml:"-"`
}

// UnmarshalYAML records whether value was present and rejects unknown
// keys, which the decoder's KnownFields setting does not cover for
// custom unmarshalers.
func (e *ExpectClause) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expect must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		switch key.Value {
		case "value":
			var v any
			if err := val.Decode(&v); err != nil {
				return err
			}
			e.Value = v
			e.HasValue = true
		case "error":
			if err := val.Decode(&e.Error); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: field %s not found in type harness.ExpectClause", key.Line, key.Value)
		}
	}
	return nil
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some step of Op produced Result
	// - "trace_count": exactly Count steps of Op ran
	// - "trace_order": steps of the listed Ops ran in this relative order
	// - "final_state": record Collection/ID equals Expect
	Type string `yaml:"type"`

	// Op is the step operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Result is the expected step result (trace_contains).
	Result any `yaml:"result,omitempty"`

	// Count is the expected number of steps (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops lists step operations in expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Collection and ID address the record (final_state).
	Collection string `yaml:"collection,omitempty"`
	ID         string `yaml:"id,omitempty"`

	// Expect is the expected record value (final_state). With no ID it
	// is the whole collection as {id: value}.
	Expect any `yaml:"expect,omitempty"`

	// Absent asserts the record, or the collection when ID is empty,
	// does not exist (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly inside dir,
// sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, rec := range s.Setup {
		if rec.Collection == "" {
			return fmt.Errorf("setup[%d]: collection is required", i)
		}
	}

	for i, step := range s.Steps {
		if n := step.opCount(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one operation is required, found %d", i, n)
		}
		if step.Match != nil && step.Match.Right == nil {
			return fmt.Errorf("steps[%d]: match.right is required", i)
		}
		if step.Insert != nil && step.Insert.Collection == "" {
			return fmt.Errorf("steps[%d]: insert.collection is required", i)
		}
		if step.Delete != nil && step.Delete.Collection == "" {
			return fmt.Errorf("steps[%d]: delete.collection is required", i)
		}
		if e := step.Expect; e != nil {
			if e.HasValue && e.Error != "" {
				return fmt.Errorf("steps[%d].expect: value and error are mutually exclusive", i)
			}
			if !e.HasValue && e.Error == "" {
				return fmt.Errorf("steps[%d].expect: value or error is required", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("assertions[%d]: ops must list at least 2 operations for trace_order", index)
		}
	case AssertFinalState:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for final_state", index)
		}
		if a.Absent && a.Expect != nil {
			return fmt.Errorf("assertions[%d]: expect and absent are mutually exclusive", index)
		}
		if !a.Absent && a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
