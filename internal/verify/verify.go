// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package verify compares reference bucket offsets with the values read
// back from an accelerator.
package verify

import (
	"fmt"
	"io"
)

// Mismatch is one index where the accelerator disagrees with the reference.
type Mismatch struct {
	Index    int
	Expected uint32
	Observed uint32

	// Missing is set when the accelerator returned fewer values than the
	// reference; Observed is zero in that case.
	Missing bool
}

// String formats the mismatch as a single diagnostic line.
func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("index %d: expected %d, observed <missing>", m.Index, m.Expected)
	}
	return fmt.Sprintf("index %d: expected %d, observed %d", m.Index, m.Expected, m.Observed)
}

// Compare walks expected and observed index by index and returns every
// position where they differ, in index order. Extra observed values beyond
// len(expected) are ignored.
func Compare(expected, observed []uint32) []Mismatch {
	var out []Mismatch
	for i, want := range expected {
		if i >= len(observed) {
			out = append(out, Mismatch{Index: i, Expected: want, Missing: true})
			continue
		}
		if got := observed[i]; got != want {
			out = append(out, Mismatch{Index: i, Expected: want, Observed: got})
		}
	}
	return out
}

// WriteMismatches writes one line per mismatch.
func WriteMismatches(w io.Writer, ms []Mismatch) error {
	for _, m := range ms {
		if _, err := fmt.Fprintln(w, m.String()); err != nil {
			return err
		}
	}
	return nil
}

// WriteListing writes a line for every index in the form
// "i: <index>, cpu: <expected>, gpu: <observed>".
func WriteListing(w io.Writer, expected, observed []uint32) error {
	for i, want := range expected {
		var err error
		if i < len(observed) {
			_, err = fmt.Fprintf(w, "i: %d, cpu: %d, gpu: %d\n", i, want, observed[i])
		} else {
			_, err = fmt.Fprintf(w, "i: %d, cpu: %d, gpu: -\n", i, want)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
