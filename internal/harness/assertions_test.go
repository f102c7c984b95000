package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/ir"
)

func sampleResult() *Result {
	r := NewResult()
	r.Keys = []string{"empID"}
	r.Values = []string{"deptID"}
	r.Outcomes = []Outcome{
		{Class: ir.ClassIdentical, Node: "noop", Row: ir.Row{"empID": ir.Int(1), "deptID": ir.Int(10)}},
		{Class: ir.ClassNew, Node: "insert", Row: ir.Row{"empID": ir.Int(2), "deptID": ir.Int(20)}},
		{Class: ir.ClassNew, Node: "update", Row: ir.Row{"empID": ir.Int(3), "deptID": ir.Null{}}},
	}
	for _, o := range r.Outcomes {
		r.Counts[o.Class]++
	}
	return r
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"count ok", Assertion{Type: AssertClassCount, Class: ir.ClassNew, Count: 2}, ""},
		{"count zero", Assertion{Type: AssertClassCount, Class: ir.ClassDeleted, Count: 0}, ""},
		{"count wrong", Assertion{Type: AssertClassCount, Class: ir.ClassNew, Count: 1}, "expected 1 new rows, got 2"},
		{"class_of ok", Assertion{Type: AssertClassOf, Class: ir.ClassIdentical, Key: map[string]any{"empID": 1}}, ""},
		{"class_of wrong", Assertion{Type: AssertClassOf, Class: ir.ClassChanged, Key: map[string]any{"empID": 2}}, "got new"},
		{"class_of missing", Assertion{Type: AssertClassOf, Class: ir.ClassNew, Key: map[string]any{"empID": 9}}, "no such row"},
		{"class_of bad key", Assertion{Type: AssertClassOf, Class: ir.ClassNew, Key: map[string]any{"empID": 1.5}}, "key"},
		{"routes ok", Assertion{Type: AssertRoutesTo, Class: ir.ClassIdentical, Node: "noop"}, ""},
		{"routes wrong", Assertion{Type: AssertRoutesTo, Class: ir.ClassNew, Node: "insert"}, "got update"},
		{"total ok", Assertion{Type: AssertTotal, Count: 3}, ""},
		{"total wrong", Assertion{Type: AssertTotal, Count: 4}, "expected 4 rows, got 3 rows"},
		{"unknown", Assertion{Type: "trace_order"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluate(sampleResult(), tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertTotal, Expected: "4 rows", Actual: "3 rows"}
	assert.Equal(t, "total: expected 4 rows, got 3 rows", err.Error())
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
