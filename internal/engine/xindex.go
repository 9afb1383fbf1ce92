package engine

import "sort"

// DefaultSparseIndexStride is K, the default sampling stride: one sample
// per this many rows.
const DefaultSparseIndexStride = 1000

type xSample struct {
	Axis AxisValue
	Row  int
}

// XIndex is a strictly increasing (by row, non-decreasing by axis value)
// sequence of samples enabling O(log n) axis-to-row lookup without a
// full scan.
type XIndex struct {
	K       int
	Samples []xSample
}

func newXIndex(k int) *XIndex {
	if k < 1 {
		k = DefaultSparseIndexStride
	}
	return &XIndex{K: k}
}

// shouldSample reports whether row should be recorded in the sparse index
// per sample_during_build: every K rows.
func (x *XIndex) shouldSample(row int) bool {
	return row%x.K == 0
}

// addSample appends a sample unconditionally. Callers use shouldSample for
// the periodic case and call addSample directly to force-include the first
// and last indexed row, per the Sparse X Index invariant that both are
// always present.
func (x *XIndex) addSample(row int, axis AxisValue) {
	if n := len(x.Samples); n > 0 && x.Samples[n-1].Row == row {
		x.Samples[n-1].Axis = axis
		return
	}
	x.Samples = append(x.Samples, xSample{Axis: axis, Row: row})
}

// locate binary-searches for the largest sample with axis_value <=
// target, returning that sample's row. Opaque string axes are not
// eligible for range-zoom and are handled by the caller before reaching
// here (locateBoundary below).
func (x *XIndex) locate(target AxisValue) int {
	n := len(x.Samples)
	if n == 0 {
		return 0
	}
	i := sort.Search(n, func(i int) bool {
		return compareAxis(x.Samples[i].Axis, target) > 0
	})
	if i == 0 {
		return x.Samples[0].Row
	}
	return x.Samples[i-1].Row
}

// locateBoundary handles the axis-kind special case: for opaque
// strings, x_start always resolves to row 0 and x_end to the last
// indexed row, since string axes have no meaningful numeric range to
// zoom into.
func (x *XIndex) locateBoundary(kind AxisKind, target AxisValue, lastRow int, wantStart bool) int {
	if kind == AxisString {
		if wantStart {
			return 0
		}
		return lastRow
	}
	return x.locate(target)
}

// checkMonotonic enforces the non-decreasing-axis precondition: each
// newly observed axis value must be >= the previous one. It is applied
// to every row during the streaming build/append pass, not only
// sampled rows, so that violations are reported at the exact offending
// row.
func checkMonotonic(prev, cur AxisValue, havePrev bool) bool {
	if !havePrev {
		return true
	}
	return compareAxis(cur, prev) >= 0
}
