// Package ir provides the shared types of the reconciliation pipeline.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Node is a tagged variant: Kind plus one NodeConfig payload per kind
//   - Row values are Null, String, Int or Bool; decimals travel as String
//   - All JSON tags use snake_case
//   - Records carry wall-clock create/update times; graphs carry none
package ir
