package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reconcile/internal/ir"
)

// Scenario is one merge-diff case: a transfer request plus literal rows for
// both sides of it.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Request is the path of a transfer request file. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Request string `yaml:"request"`

	// Source rows use source column names. They are renamed onto target
	// columns before the merge.
	Source []map[string]any `yaml:"source"`

	// Target rows use target column names.
	Target []map[string]any `yaml:"target"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of the classified output.
type Assertion struct {
	// Type is one of class_count, class_of, routes_to, total.
	Type string `yaml:"type"`

	Class ir.Class `yaml:"class,omitempty"`

	// Count is used by class_count and total.
	Count int `yaml:"count,omitempty"`

	// Key selects a row by its key columns (class_of).
	Key map[string]any `yaml:"key,omitempty"`

	// Node is the expected terminal node id (routes_to).
	Node string `yaml:"node,omitempty"`
}

// Assertion type constants.
const (
	AssertClassCount = "class_count"
	AssertClassOf    = "class_of"
	AssertRoutesTo   = "routes_to"
	AssertTotal      = "total"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Request != "" && !filepath.IsAbs(scenario.Request) {
		scenario.Request = filepath.Join(filepath.Dir(path), scenario.Request)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Request == "" {
		return fmt.Errorf("request is required")
	}
	if _, err := os.Stat(s.Request); os.IsNotExist(err) {
		return fmt.Errorf("request file not found: %s", s.Request)
	}
	if len(s.Source) == 0 && len(s.Target) == 0 {
		return fmt.Errorf("at least one source or target row is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertClassCount:
		if !knownClass(a.Class) {
			return fmt.Errorf("assertions[%d]: unknown class %q", index, a.Class)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for class_count", index)
		}
	case AssertClassOf:
		if !knownClass(a.Class) {
			return fmt.Errorf("assertions[%d]: unknown class %q", index, a.Class)
		}
		if len(a.Key) == 0 {
			return fmt.Errorf("assertions[%d]: key is required for class_of", index)
		}
	case AssertRoutesTo:
		if !knownClass(a.Class) {
			return fmt.Errorf("assertions[%d]: unknown class %q", index, a.Class)
		}
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for routes_to", index)
		}
	case AssertTotal:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for total", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownClass(c ir.Class) bool {
	switch c {
	case ir.ClassIdentical, ir.ClassNew, ir.ClassChanged, ir.ClassDeleted:
		return true
	}
	return false
}
