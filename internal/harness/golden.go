package harness

import (
	"bytes"
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats a result as one tab-separated line per outcome.
func Render(r *Result) []byte {
	cols := slices.Concat(r.Keys, r.Values)
	var buf bytes.Buffer
	for _, o := range r.Outcomes {
		buf.WriteString(string(o.Class))
		buf.WriteByte('\t')
		buf.WriteString(o.Node)
		buf.WriteByte('\t')
		buf.WriteString(formatColumns(o.Row, cols))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// RunWithGolden runs a scenario and compares its rendered outcomes against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(result))
}
