package compiler

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/ir"
)

func requestPath(name string) string {
	return filepath.Join("testdata", "requests", name)
}

func TestLoadRequest_Formats(t *testing.T) {
	for _, name := range []string{"employees.cue", "employees.yaml", "employees.json"} {
		t.Run(name, func(t *testing.T) {
			req, err := LoadRequest(requestPath(name))
			require.NoError(t, err)

			assert.Equal(t, "db1", req.Source.Host)
			assert.Equal(t, 3306, req.Source.Port)
			assert.Equal(t, []string{"emp_no", "dept_no", "first_name"}, req.Source.Columns)
			assert.Equal(t, []string{"empID"}, req.Target.PrimaryKeyColumns)
			assert.Equal(t, "person", req.Target.TableName)

			_, err = Compile(req.Source, req.Target)
			require.NoError(t, err)
		})
	}
}

func TestLoadRequest_YAMLCron(t *testing.T) {
	req, err := LoadRequest(requestPath("employees.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", req.CronExpression)
}

func TestLoadRequest_CUEOptionalFields(t *testing.T) {
	req, err := LoadRequest(requestPath("employees.cue"))
	require.NoError(t, err)
	assert.Equal(t, "etl", req.Source.User)
	assert.Empty(t, req.Source.AccessMode)
	assert.Equal(t, ir.DefaultAccessMode, req.Source.Connection().AccessMode)
}

func TestLoadRequest_CUESchemaRejectsEmptyColumns(t *testing.T) {
	_, err := LoadRequest(requestPath("empty_columns.cue"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
}

func TestLoadRequest_YAMLUnknownField(t *testing.T) {
	_, err := LoadRequest(requestPath("unknown_field.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hostname")
}

func TestLoadRequest_Errors(t *testing.T) {
	_, err := LoadRequest(requestPath("missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read request")

	_, err = LoadRequest(filepath.Join("testdata", "golden", "employee_person_graph.golden"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported request format")
}
