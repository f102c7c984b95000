package harness

import "github.com/roach88/reconcile/internal/ir"

// Outcome is one classified row and the terminal node it reached.
type Outcome struct {
	Class ir.Class `json:"class"`
	Node  string   `json:"node"`
	Row   ir.Row   `json:"row"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Outcomes are ordered by key.
	Outcomes []Outcome `json:"outcomes"`

	Counts map[ir.Class]int `json:"counts"`

	// Errors holds one message per failed assertion.
	Errors []string `json:"errors,omitempty"`

	// Keys and Values are the merge columns, used for rendering.
	Keys   []string `json:"-"`
	Values []string `json:"-"`
}

// NewResult creates a passing result with no outcomes.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Counts: make(map[ir.Class]int, 4),
		Errors: []string{},
	}
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
