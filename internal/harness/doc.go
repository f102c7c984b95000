// Package harness runs merge-diff scenarios against compiled pipeline graphs.
//
// A scenario names a transfer request file and supplies literal source and
// target rows. The harness compiles the request, applies the graph's rename
// step to the source rows, merge-diffs them against the target rows on the
// target key, and walks each classified row through the classifier chain to
// the apply action it would reach.
//
// # Scenario Format
//
//	name: employees_mixed
//	description: "One row of every class"
//	request: ../requests/employees.yaml
//	source:
//	  - {emp_no: 1, dept_no: 10, first_name: Ann}
//	target:
//	  - {empID: 1, deptID: 10, firstName: Ann}
//	assertions:
//	  - type: class_count
//	    class: identical
//	    count: 1
//	  - type: class_of
//	    key: {empID: 1}
//	    class: identical
//	  - type: routes_to
//	    class: identical
//	    node: noop
//
// Rows must already be sorted by key. The request path is resolved relative
// to the scenario file.
//
// # Assertion Types
//
//   - class_count: exactly Count rows carry Class
//   - class_of: the row whose key columns equal Key carries Class
//   - routes_to: every row of Class reached the node with id Node
//   - total: exactly Count rows were classified
//
// # Golden Snapshots
//
// RunWithGolden writes one line per classified row in key order:
//
//	<class>\t<node>\t<col>=<value> ...
//
// Key columns come first, then value columns, in request order.
package harness
