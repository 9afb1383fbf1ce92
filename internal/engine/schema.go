package engine

import (
	"fmt"
	"math"
	"os"
)

// MinSampleRows and SampleRowRatio are the default prefix-sample size:
// at least 64 rows, or 1% of total rows, whichever is larger. The row
// index is always built in full before this runs (it has to scan every
// row anyway to record byte offsets), so total row count is already
// known — there's no need to estimate it from a partial read. Open's
// caller may override both via Options.
const (
	MinSampleRows  = 64
	SampleRowRatio = 0.01
)

func sampleSize(totalRows, minRows int, ratio float64) int {
	bySize := int(math.Ceil(float64(totalRows) * ratio))
	n := minRows
	if bySize > n {
		n = bySize
	}
	if n > totalRows {
		n = totalRows
	}
	return n
}

// buildSchema implements the schema-inference half of open(): sample a
// prefix of the already-fully-indexed file and run it through column
// classification.
func buildSchema(f *os.File, idx *RowIndex, header []string, minRows int, ratio float64) (Schema, []QualityRecord, error) {
	total := idx.RowCount()
	if total == 0 {
		return Schema{}, nil, newEngineError(KindNoDataRows, "", ErrNoDataRows)
	}

	n := sampleSize(total, minRows, ratio)
	rawLines, err := readRawRows(f, idx, 0, n)
	if err != nil {
		return Schema{}, nil, err
	}
	rows := make([][]string, len(rawLines))
	for i, line := range rawLines {
		rows[i] = splitCSVRow(line)
	}

	return filterColumns(header, rows)
}

// buildXIndex performs the sparse index's build-time pass: a single
// sequential scan of the data rows that parses only the axis field,
// enforces the non-decreasing invariant row by row, and samples every K-th row plus
// the first and last into the sparse index.
func buildXIndex(f *os.File, idx *RowIndex, axisKind AxisKind, stride int) (*XIndex, error) {
	xindex := newXIndex(stride)
	total := idx.RowCount()
	if total == 0 {
		return xindex, nil
	}
	lastRow := total - 1

	var prev AxisValue
	havePrev := false
	row := 0
	_, err := scanRows(f, idx.HeaderOffset, func(_ int64, line []byte) error {
		defer func() { row++ }()
		fields := splitCSVRow(line)
		if len(fields) == 0 {
			return nil
		}
		av, ok := parseAxisValue(axisKind, fields[0])
		if !ok {
			return nil
		}
		if !checkMonotonic(prev, av, havePrev) {
			return newEngineError(KindNonMonotonicAxis, fmt.Sprintf("row %d", row), ErrNonMonotonicAxis)
		}
		prev, havePrev = av, true
		if xindex.shouldSample(row) || row == 0 || row == lastRow {
			xindex.addSample(row, av)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return xindex, nil
}
