package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/ir"
)

func TestRun_ClassifiesAndRoutes(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Request:     requestPath(t),
		Source: []map[string]any{
			{"emp_no": 1, "dept_no": 10, "first_name": "Ann"},
			{"emp_no": 3, "dept_no": 30, "first_name": "Cat"},
		},
		Target: []map[string]any{
			{"empID": 1, "deptID": 11, "firstName": "Ann"},
			{"empID": 2, "deptID": 20, "firstName": "Bob"},
		},
		Assertions: []Assertion{{Type: AssertTotal, Count: 3}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, ir.ClassChanged, result.Outcomes[0].Class)
	assert.Equal(t, compiler.NodeUpdate, result.Outcomes[0].Node)
	assert.Equal(t, ir.ClassDeleted, result.Outcomes[1].Class)
	assert.Equal(t, compiler.NodeDelete, result.Outcomes[1].Node)
	assert.Equal(t, ir.ClassNew, result.Outcomes[2].Class)
	assert.Equal(t, compiler.NodeInsert, result.Outcomes[2].Node)

	// Source rows come out under target column names.
	assert.Equal(t, ir.Row{"empID": ir.Int(3), "deptID": ir.Int(30), "firstName": ir.String("Cat")}, result.Outcomes[2].Row)

	assert.Equal(t, []string{"empID"}, result.Keys)
	assert.Equal(t, []string{"deptID", "firstName"}, result.Values)
	assert.Equal(t, 1, result.Counts[ir.ClassNew])
	assert.Equal(t, 0, result.Counts[ir.ClassIdentical])
}

func TestRun_FailedAssertionsRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "expects the wrong class",
		Request:     requestPath(t),
		Source:      []map[string]any{{"emp_no": 1, "dept_no": 10, "first_name": "Ann"}},
		Assertions: []Assertion{
			{Type: AssertClassOf, Key: map[string]any{"empID": 1}, Class: ir.ClassDeleted},
			{Type: AssertTotal, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "class_of")
}

func TestRun_UnsortedRows(t *testing.T) {
	scenario := &Scenario{
		Name:        "unsorted",
		Description: "target out of key order",
		Request:     requestPath(t),
		Target: []map[string]any{
			{"empID": 2, "deptID": 20, "firstName": "Bob"},
			{"empID": 1, "deptID": 10, "firstName": "Ann"},
		},
		Assertions: []Assertion{{Type: AssertTotal, Count: 2}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input not sorted by key")
}

func TestRun_UnsupportedValue(t *testing.T) {
	scenario := &Scenario{
		Name:        "float",
		Description: "fractional number",
		Request:     requestPath(t),
		Source:      []map[string]any{{"emp_no": 1, "dept_no": 1.5, "first_name": "Ann"}},
		Assertions:  []Assertion{{Type: AssertTotal, Count: 1}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source[0]")
}

func TestRun_BadRequest(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "request file is gone",
		Request:     "testdata/requests/missing.yaml",
		Source:      []map[string]any{{"emp_no": 1}},
		Assertions:  []Assertion{{Type: AssertTotal}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load request")
}
