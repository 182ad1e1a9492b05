// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bucketoffset

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gogpu/bucketoffset/internal/reference"
	"github.com/gogpu/bucketoffset/internal/verify"
)

// Buckets is the number of sort buckets (6 key bits).
const Buckets = reference.Buckets

// Mismatch is one index where the accelerator disagrees with the host.
type Mismatch = verify.Mismatch

// Outcome is the tagged result of a run.
type Outcome int

const (
	// OutcomePass means every index agreed.
	OutcomePass Outcome = iota

	// OutcomeMismatch means the kernel completed with wrong offsets.
	OutcomeMismatch

	// OutcomeFatal means the run stopped on a FatalError.
	OutcomeFatal
)

// String returns the human-readable name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "PASS"
	case OutcomeMismatch:
		return "FAIL"
	case OutcomeFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// Report is the record of one harness run.
type Report struct {
	RunID   string
	Seed    uint64
	Length  int
	Backend string
	Adapter string

	Input     []uint32
	Histogram [Buckets]uint32
	Offsets   [Buckets]uint32
	Expected  []uint32

	// Observed holds the values read back from the accelerator. It stays
	// nil when the run ended fatally.
	Observed   []uint32
	Mismatches []Mismatch

	// ChiSquare and PValue measure how uniformly the input spreads over
	// the buckets (63 degrees of freedom).
	ChiSquare float64
	PValue    float64

	Outcome  Outcome
	Err      error
	Duration time.Duration

	// ListAll makes WriteText print every index.
	ListAll bool
}

// Passed reports whether the run completed with no mismatches.
func (r *Report) Passed() bool {
	return r != nil && r.Outcome == OutcomePass
}

// fatal records err and logs it at error level.
func (r *Report) fatal(log *slog.Logger, err error, start time.Time) *Report {
	r.Outcome = OutcomeFatal
	r.Err = err
	r.Duration = time.Since(start)
	log.Error("bucketoffset: run aborted",
		"category", CategoryOf(err).String(),
		"adapter", r.Adapter,
		"error", err)
	return r
}

// WriteText writes the human-readable report: a header, one line per
// mismatch (or per index with ListAll), the bucket distribution and the
// outcome. A fatal run prints no comparison lines since nothing was read
// back.
func (r *Report) WriteText(w io.Writer) error {
	p := message.NewPrinter(language.English)

	adapter := r.Adapter
	if adapter == "" {
		adapter = "unknown adapter"
	}
	if _, err := fmt.Fprintf(w, "run %s: backend %s (%s), seed %d, length %d\n",
		r.RunID, r.Backend, adapter, r.Seed, r.Length); err != nil {
		return err
	}

	if r.Outcome != OutcomeFatal {
		var err error
		if r.ListAll {
			err = verify.WriteListing(w, r.Expected, r.Observed)
		} else {
			err = verify.WriteMismatches(w, r.Mismatches)
		}
		if err != nil {
			return err
		}
	}

	if _, err := p.Fprintf(w, "buckets: chi-square %.4f (%d dof), p=%.4f\n",
		r.ChiSquare, Buckets-1, r.PValue); err != nil {
		return err
	}

	var err error
	switch r.Outcome {
	case OutcomeFatal:
		_, err = p.Fprintf(w, "result: %s %v\n", r.Outcome, r.Err)
	default:
		_, err = p.Fprintf(w, "result: %s, %d of %d indices differ\n",
			r.Outcome, len(r.Mismatches), r.Length)
	}
	return err
}

// bucketUniformity runs a chi-square goodness-of-fit test of h against
// a uniform spread over all buckets.
func bucketUniformity(h reference.Histogram) (chi2, p float64) {
	total := float64(h.Total())
	if total == 0 {
		return 0, 1
	}
	obs := make([]float64, Buckets)
	exp := make([]float64, Buckets)
	for k, n := range h {
		obs[k] = float64(n)
		exp[k] = total / Buckets
	}
	chi2 = stat.ChiSquare(obs, exp)
	p = distuv.ChiSquared{K: Buckets - 1}.Survival(chi2)
	return chi2, p
}
