package engine

import (
	"fmt"
	"io"
	"os"
)

// ColumnarChunk is the materialized output of a ranged read: the axis
// column plus every retained data column, parallel-indexed.
type ColumnarChunk struct {
	Axis           []AxisValue
	Columns        [][]float64 // parallel to the schema's Columns, same row count as Axis
	MalformedRows  int         // field count mismatched the header; row dropped entirely
	MalformedCells int         // a retained column's field didn't parse; cell became NaN

	// MalformedValues holds the raw offending text behind MalformedRows and
	// MalformedCells, bounded per chunk, for the malformed-value frequency
	// tracker.
	MalformedValues []string
}

// maxMalformedSamplesPerChunk bounds the per-chunk sample collected for
// diagnostics so a pathologically dirty viewport can't blow up memory.
const maxMalformedSamplesPerChunk = 256

// readRawRows reads the exact byte span covering rows [rowLo, rowHi) in a
// single read, then slices it back into per-row lines using the row
// index's own offsets and lengths, so this never needs to rescan for
// line boundaries since those were already recorded when the index was
// built.
func readRawRows(f *os.File, idx *RowIndex, rowLo, rowHi int) ([][]byte, error) {
	if rowLo < 0 || rowHi > idx.RowCount() || rowLo > rowHi {
		return nil, newEngineError(KindIoError, "row range out of bounds", ErrInvalidRowRange)
	}
	if rowLo == rowHi {
		return nil, nil
	}
	first := idx.Entries[rowLo]
	last := idx.Entries[rowHi-1]
	span := last.Offset + int64(last.Length) - first.Offset

	buf := make([]byte, span)
	if _, err := f.ReadAt(buf, first.Offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	lines := make([][]byte, rowHi-rowLo)
	for i := rowLo; i < rowHi; i++ {
		e := idx.Entries[i]
		start := e.Offset - first.Offset
		lines[i-rowLo] = buf[start : start+int64(e.Length)]
	}
	return lines, nil
}

// materializeChunk parses raw row bytes into a ColumnarChunk: rows whose
// field count doesn't match the header are dropped and counted
// (MalformedRows); a retained row whose individual field doesn't parse
// under its column's kind becomes NaN in that cell (MalformedCells),
// matching pandas' read_csv coercion behavior.
func materializeChunk(lines [][]byte, schema Schema) ColumnarChunk {
	ncols := len(schema.Columns) + 1
	chunk := ColumnarChunk{
		Axis:    make([]AxisValue, 0, len(lines)),
		Columns: make([][]float64, len(schema.Columns)),
	}
	for i := range chunk.Columns {
		chunk.Columns[i] = make([]float64, 0, len(lines))
	}

	for _, line := range lines {
		fields := splitCSVRow(line)
		if len(fields) != ncols {
			chunk.MalformedRows++
			chunk.sampleMalformed(string(line))
			continue
		}
		axisVal, ok := parseAxisValue(schema.AxisKind, fields[0])
		if !ok {
			chunk.MalformedRows++
			chunk.sampleMalformed(fields[0])
			continue
		}
		chunk.Axis = append(chunk.Axis, axisVal)
		for j, col := range schema.Columns {
			f, ok := parseNumericCell(col.Kind, fields[j+1])
			if !ok {
				f = nan()
				chunk.MalformedCells++
				chunk.sampleMalformed(fields[j+1])
			}
			chunk.Columns[j] = append(chunk.Columns[j], f)
		}
	}
	return chunk
}

func (c *ColumnarChunk) sampleMalformed(raw string) {
	if len(c.MalformedValues) >= maxMalformedSamplesPerChunk {
		return
	}
	c.MalformedValues = append(c.MalformedValues, raw)
}

// axisAt reads a single row and returns just its axis value, used by the
// boundary refinement below. ok is false when the row's axis field does
// not parse; the row's field count is not checked here.
func axisAt(f *os.File, idx *RowIndex, axisKind AxisKind, row int) (AxisValue, bool, error) {
	lines, err := readRawRows(f, idx, row, row+1)
	if err != nil {
		return AxisValue{}, false, err
	}
	if len(lines) == 0 {
		return AxisValue{}, false, nil
	}
	fields := splitCSVRow(lines[0])
	if len(fields) == 0 {
		return AxisValue{}, false, nil
	}
	axisVal, ok := parseAxisValue(axisKind, fields[0])
	return axisVal, ok, nil
}

// computeRowRange narrows a requested axis range to a row span: two
// sparse-index locate() calls followed by a bounded linear refinement
// (at most K rows, the sparse stride) against the real file. Opaque
// string axes skip the refinement entirely since the whole file is
// always in range.
func computeRowRange(f *os.File, idx *RowIndex, xindex *XIndex, axisKind AxisKind, xStart, xEnd AxisValue) (rowLo, rowHi int, err error) {
	total := idx.RowCount()
	if total == 0 {
		return 0, 0, nil
	}
	lastRow := total - 1

	if axisKind == AxisString {
		return 0, total, nil
	}

	approxLo := xindex.locateBoundary(axisKind, xStart, lastRow, true)
	lo, err := refineLowerBound(f, idx, axisKind, xindex, approxLo, lastRow, xStart)
	if err != nil {
		return 0, 0, err
	}

	approxHi := xindex.locateBoundary(axisKind, xEnd, lastRow, false)
	hiInclusive, err := refineUpperBound(f, idx, axisKind, xindex, approxHi, lastRow, xEnd)
	if err != nil {
		return 0, 0, err
	}

	if hiInclusive < lo {
		return lo, lo, nil
	}
	return lo, hiInclusive + 1, nil
}

// refineLowerBound walks forward from the sparse index's approximate row
// until it finds the first row whose axis value is >= xStart, skipping
// malformed rows along the way. Bounded to K steps since the next sample
// after approxRow is at most K rows away and, by construction, already
// satisfies axis >= xStart.
func refineLowerBound(f *os.File, idx *RowIndex, axisKind AxisKind, xindex *XIndex, approxRow, lastRow int, xStart AxisValue) (int, error) {
	row := approxRow
	steps := 0
	maxSteps := xindex.K + 1
	for row <= lastRow && steps <= maxSteps {
		av, ok, err := axisAt(f, idx, axisKind, row)
		if err != nil {
			return 0, err
		}
		if ok && compareAxis(av, xStart) >= 0 {
			break
		}
		row++
		steps++
	}
	return row, nil
}

// refineUpperBound walks forward from the sparse index's approximate row,
// tracking the last row whose axis value is still < xEnd (the viewport
// is half-open), skipping malformed rows. Bounded to K steps for the
// same reason as refineLowerBound. approxRow itself is checked rather
// than assumed good, since a sample's axis value can land exactly on
// xEnd.
func refineUpperBound(f *os.File, idx *RowIndex, axisKind AxisKind, xindex *XIndex, approxRow, lastRow int, xEnd AxisValue) (int, error) {
	lastGood := approxRow - 1
	steps := 0
	maxSteps := xindex.K + 1
	for row := approxRow; row <= lastRow && steps <= maxSteps; row++ {
		av, ok, err := axisAt(f, idx, axisKind, row)
		if err != nil {
			return 0, err
		}
		if ok {
			if compareAxis(av, xEnd) >= 0 {
				break
			}
			lastGood = row
		}
		steps++
	}
	return lastGood, nil
}
