package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of store operations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Namespace confines the store to a key prefix.
	Namespace string `yaml:"namespace,omitempty"`

	// IDProperty overrides the identifier field.
	IDProperty string `yaml:"id_property,omitempty"`

	// IDs are handed out in order to records stored without an identifier.
	IDs []any `yaml:"ids,omitempty"`

	// Setup seeds the store before the steps run. Setup writes must succeed.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps run in order after setup.
	Steps []Step `yaml:"steps"`
}

// Setup holds records written with unconditional puts.
type Setup struct {
	Records []map[string]any `yaml:"records"`
}

// Step is one operation. Exactly one of Put, Get, Delete, Query is set.
type Step struct {
	Put    *PutStep    `yaml:"put,omitempty"`
	Get    *GetStep    `yaml:"get,omitempty"`
	Delete *DeleteStep `yaml:"delete,omitempty"`
	Query  *QueryStep  `yaml:"query,omitempty"`

	// Expect is checked against the step's outcome. Without it the step
	// must simply succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

type PutStep struct {
	Record      map[string]any `yaml:"record"`
	ID          any            `yaml:"id,omitempty"`
	NoOverwrite bool           `yaml:"no_overwrite,omitempty"`
	Sync        bool           `yaml:"sync,omitempty"`
}

type GetStep struct {
	ID any `yaml:"id"`
}

type DeleteStep struct {
	ID   any  `yaml:"id"`
	Sync bool `yaml:"sync,omitempty"`
}

type QueryStep struct {
	RQL    string `yaml:"rql"`
	Params []any  `yaml:"params,omitempty"`
}

// Expect describes a step's outcome. Unset fields are not checked.
type Expect struct {
	// ID is the identifier a put must return.
	ID any `yaml:"id,omitempty"`

	// Record is the exact record a get must return.
	Record map[string]any `yaml:"record,omitempty"`

	// Empty requires a get to find nothing or a query to match nothing.
	Empty bool `yaml:"empty,omitempty"`

	// Error is the error code the step must fail with, e.g. ALREADY_EXISTS.
	Error string `yaml:"error,omitempty"`

	// Records is the exact, ordered result of a query.
	Records []map[string]any `yaml:"records,omitempty"`

	// Count is the number of records a query must deliver.
	Count *int `yaml:"count,omitempty"`
}

// Operation returns the name of the step's operation, or "" if none is set.
func (s Step) Operation() string {
	switch {
	case s.Put != nil:
		return "put"
	case s.Get != nil:
		return "get"
	case s.Delete != nil:
		return "delete"
	case s.Query != nil:
		return "query"
	default:
		return ""
	}
}

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

	for i, rec := range s.Setup.Records {
		if rec == nil {
			return fmt.Errorf("setup.records[%d]: record must be a mapping", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	set := 0
	for _, present := range []bool{s.Put != nil, s.Get != nil, s.Delete != nil, s.Query != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of put, get, delete, query is required", index)
	}

	switch {
	case s.Put != nil:
		if s.Put.Record == nil {
			return fmt.Errorf("steps[%d]: put.record is required", index)
		}
	case s.Get != nil:
		if s.Get.ID == nil {
			return fmt.Errorf("steps[%d]: get.id is required", index)
		}
	case s.Delete != nil:
		if s.Delete.ID == nil {
			return fmt.Errorf("steps[%d]: delete.id is required", index)
		}
	}

	if s.Expect == nil {
		return nil
	}
	e := s.Expect
	if e.Error != "" && (e.ID != nil || e.Record != nil || e.Records != nil || e.Count != nil || e.Empty) {
		return fmt.Errorf("steps[%d].expect: error cannot be combined with other expectations", index)
	}
	if e.Count != nil && *e.Count < 0 {
		return fmt.Errorf("steps[%d].expect: count must be non-negative", index)
	}
	return nil
}
