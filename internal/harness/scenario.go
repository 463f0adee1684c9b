package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a directory of CUE kind schemas, relative to the scenario
	// file. Empty selects the built-in schemas.
	Schema string `yaml:"schema,omitempty"`

	// Cooldown overrides the manual-save cooldown.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// NextID is the first persisted id the fake store hands out.
	NextID int64 `yaml:"next_id,omitempty"`

	// Seed rows are loaded into the grid as clean persisted rows.
	Seed []SeedRow `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// SeedRow is a persisted row present before the first step.
type SeedRow struct {
	Kind   string    `yaml:"kind"`
	ID     int64     `yaml:"id"`
	Ref    string    `yaml:"ref,omitempty"`
	Status string    `yaml:"status,omitempty"`
	Fields FieldList `yaml:"fields"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	Add     *AddStep      `yaml:"add,omitempty"`
	Edit    *EditStep     `yaml:"edit,omitempty"`
	Bulk    *BulkStep     `yaml:"bulk,omitempty"`
	Delete  *RowsStep     `yaml:"delete,omitempty"`
	Status  *StatusStep   `yaml:"status,omitempty"`
	Save    string        `yaml:"save,omitempty"`
	Tick    bool          `yaml:"tick,omitempty"`
	Advance time.Duration `yaml:"advance,omitempty"`
	Hold    bool          `yaml:"hold,omitempty"`
	Release bool          `yaml:"release,omitempty"`
	Fail    string        `yaml:"fail,omitempty"`
	Expect  *Expect       `yaml:"expect,omitempty"`

	// Error is the error code the step must fail with, e.g. BUSY.
	Error string `yaml:"error,omitempty"`
}

// AddStep inserts a new row. Ref names it for later steps.
type AddStep struct {
	Kind   string    `yaml:"kind"`
	Ref    string    `yaml:"ref"`
	Fields FieldList `yaml:"fields"`
}

// EditStep sets one cell from its text form.
type EditStep struct {
	Kind  string `yaml:"kind"`
	Row   string `yaml:"row"`
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// BulkStep sets the same cell on many rows.
type BulkStep struct {
	Kind  string   `yaml:"kind"`
	Rows  []string `yaml:"rows"`
	Field string   `yaml:"field"`
	Value string   `yaml:"value"`
}

// RowsStep names rows of one kind.
type RowsStep struct {
	Kind string   `yaml:"kind"`
	Rows []string `yaml:"rows"`
}

// StatusStep moves persisted rows into a bucket.
type StatusStep struct {
	Kind   string   `yaml:"kind"`
	Rows   []string `yaml:"rows"`
	Bucket string   `yaml:"bucket"`
}

// Expect checks session state. Every set clause must hold.
type Expect struct {
	Rows    []RowExpect     `yaml:"rows,omitempty"`
	Absent  []RowsStep      `yaml:"absent,omitempty"`
	Pending []PendingExpect `yaml:"pending,omitempty"`
	Saves   *int            `yaml:"saves,omitempty"`
	Guard   string          `yaml:"guard,omitempty"`
	Status  string          `yaml:"status,omitempty"`
}

// RowExpect checks one grid row. Unset fields are not checked.
type RowExpect struct {
	Kind         string    `yaml:"kind"`
	Row          string    `yaml:"row"`
	ID           int64     `yaml:"id,omitempty"`
	Visual       string    `yaml:"visual,omitempty"`
	Status       string    `yaml:"status,omitempty"`
	Fields       FieldList `yaml:"fields,omitempty"`
	PendingCells []string  `yaml:"pending_cells,omitempty"`
}

// PendingExpect checks the pending-change counts of one kind.
type PendingExpect struct {
	Kind    string `yaml:"kind"`
	Added   *int   `yaml:"added,omitempty"`
	Updated *int   `yaml:"updated,omitempty"`
	Deleted *int   `yaml:"deleted,omitempty"`
}

// FieldValue is one key and its text value.
type FieldValue struct {
	Key   string
	Value string
}

// FieldList is a YAML mapping that keeps its key order.
type FieldList []FieldValue

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *FieldList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	out := make(FieldList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field %q must be a scalar", v.Line, k.Value)
		}
		out = append(out, FieldValue{Key: k.Value, Value: v.Value})
	}
	*l = out
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML held in memory.
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

	for i, row := range s.Seed {
		if row.Kind == "" {
			return fmt.Errorf("seed[%d]: kind is required", i)
		}
		if row.ID <= 0 {
			return fmt.Errorf("seed[%d]: id must be positive", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st Step) error {
	set := 0
	count := func(ok bool) {
		if ok {
			set++
		}
	}
	count(st.Add != nil)
	count(st.Edit != nil)
	count(st.Bulk != nil)
	count(st.Delete != nil)
	count(st.Status != nil)
	count(st.Save != "")
	count(st.Tick)
	count(st.Advance != 0)
	count(st.Hold)
	count(st.Release)
	count(st.Fail != "")
	count(st.Expect != nil)
	if set != 1 {
		return fmt.Errorf("exactly one action is required, got %d", set)
	}

	switch {
	case st.Add != nil:
		if st.Add.Kind == "" || st.Add.Ref == "" {
			return fmt.Errorf("add: kind and ref are required")
		}
	case st.Edit != nil:
		if st.Edit.Kind == "" || st.Edit.Row == "" || st.Edit.Field == "" {
			return fmt.Errorf("edit: kind, row and field are required")
		}
	case st.Bulk != nil:
		if st.Bulk.Kind == "" || len(st.Bulk.Rows) == 0 || st.Bulk.Field == "" {
			return fmt.Errorf("bulk: kind, rows and field are required")
		}
	case st.Delete != nil:
		if st.Delete.Kind == "" || len(st.Delete.Rows) == 0 {
			return fmt.Errorf("delete: kind and rows are required")
		}
	case st.Status != nil:
		if st.Status.Kind == "" || len(st.Status.Rows) == 0 || st.Status.Bucket == "" {
			return fmt.Errorf("status: kind, rows and bucket are required")
		}
	case st.Advance < 0:
		return fmt.Errorf("advance must be positive")
	case st.Expect != nil:
		if st.Error != "" {
			return fmt.Errorf("expect steps cannot carry an error")
		}
	}
	return nil
}
