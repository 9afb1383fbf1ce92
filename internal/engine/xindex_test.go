package engine

import "testing"

func buildTestXIndex(stride int, rows []int64) *XIndex {
	x := newXIndex(stride)
	for i, v := range rows {
		if x.shouldSample(i) || i == len(rows)-1 {
			x.addSample(i, AxisValue{Kind: AxisInt64, I: v})
		}
	}
	return x
}

func TestXIndexLocateFindsLargestLE(t *testing.T) {
	rows := make([]int64, 10000)
	for i := range rows {
		rows[i] = int64(i)
	}
	x := buildTestXIndex(1000, rows)

	got := x.locate(AxisValue{Kind: AxisInt64, I: 4500})
	if got < 4000 || got > 4500 {
		t.Fatalf("locate(4500) = %d, expected a sample row at or before 4500 and within one stride", got)
	}

	if got := x.locate(AxisValue{Kind: AxisInt64, I: -1}); got != 0 {
		t.Fatalf("locate before range should return first sample row, got %d", got)
	}
}

func TestXIndexLocateBoundaryStringAxis(t *testing.T) {
	x := newXIndex(100)
	if got := x.locateBoundary(AxisString, AxisValue{}, 999, true); got != 0 {
		t.Fatalf("string axis start should always be row 0, got %d", got)
	}
	if got := x.locateBoundary(AxisString, AxisValue{}, 999, false); got != 999 {
		t.Fatalf("string axis end should always be the last row, got %d", got)
	}
}

func TestXIndexAddSampleDedupesSameRow(t *testing.T) {
	x := newXIndex(10)
	x.addSample(5, AxisValue{Kind: AxisInt64, I: 1})
	x.addSample(5, AxisValue{Kind: AxisInt64, I: 2})
	if len(x.Samples) != 1 {
		t.Fatalf("expected overwriting the same row to not grow the sample list, got %d entries", len(x.Samples))
	}
	if x.Samples[0].Axis.I != 2 {
		t.Fatalf("expected the later value to win, got %d", x.Samples[0].Axis.I)
	}
}
