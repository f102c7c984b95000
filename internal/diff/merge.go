package diff

import (
	"errors"
	"fmt"

	"github.com/roach88/reconcile/internal/ir"
)

// ErrUnsortedInput is returned when a stream is not strictly ascending on
// its key columns. Duplicate keys count as unsorted.
var ErrUnsortedInput = errors.New("input not sorted by key")

// Classified is the single output row for one key. Row is the compare row
// for identical, new and changed keys and the reference row for deleted ones.
type Classified struct {
	Class ir.Class
	Row   ir.Row
}

// Classify decides the class of one key from whichever rows carry it.
// A nil row means the key is absent from that stream.
func Classify(reference, compare ir.Row, values []string) ir.Class {
	switch {
	case reference == nil:
		return ir.ClassNew
	case compare == nil:
		return ir.ClassDeleted
	}
	for _, col := range values {
		if !ir.Equal(reference.Get(col), compare.Get(col)) {
			return ir.ClassChanged
		}
	}
	return ir.ClassIdentical
}

// Merge classifies every key in the union of reference and compare.
// Output is ordered by key.
func Merge(reference, compare []ir.Row, keys, values []string) ([]Classified, error) {
	if err := checkSorted("reference", reference, keys); err != nil {
		return nil, err
	}
	if err := checkSorted("compare", compare, keys); err != nil {
		return nil, err
	}

	out := make([]Classified, 0, max(len(reference), len(compare)))
	i, j := 0, 0
	for i < len(reference) || j < len(compare) {
		var c int
		switch {
		case i == len(reference):
			c = 1
		case j == len(compare):
			c = -1
		default:
			c = ir.CompareKeys(reference[i], compare[j], keys)
		}

		switch {
		case c < 0:
			out = append(out, Classified{Class: ir.ClassDeleted, Row: reference[i]})
			i++
		case c > 0:
			out = append(out, Classified{Class: ir.ClassNew, Row: compare[j]})
			j++
		default:
			out = append(out, Classified{Class: Classify(reference[i], compare[j], values), Row: compare[j]})
			i++
			j++
		}
	}
	return out, nil
}

func checkSorted(stream string, rows []ir.Row, keys []string) error {
	for i := 1; i < len(rows); i++ {
		if ir.CompareKeys(rows[i-1], rows[i], keys) >= 0 {
			return fmt.Errorf("%s row %d: %w", stream, i, ErrUnsortedInput)
		}
	}
	return nil
}

// Counts tallies classified rows per class.
func Counts(rows []Classified) map[ir.Class]int {
	counts := make(map[ir.Class]int, 4)
	for _, r := range rows {
		counts[r.Class]++
	}
	return counts
}
