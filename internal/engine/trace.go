package engine

// assembleTraces turns a materialized chunk into the per-column display
// series the façade hands back to the caller. rowLo is the chunk's
// absolute starting row, needed only to project an opaque string axis
// onto an ordinal x position.
func assembleTraces(chunk ColumnarChunk, schema Schema, rowLo int, nOut int, minMaxRatio float64) []Trace {
	xs := make([]float64, len(chunk.Axis))
	for i, av := range chunk.Axis {
		xs[i] = av.toFloat64(rowLo + i)
	}

	traces := make([]Trace, len(schema.Columns))
	for j, col := range schema.Columns {
		ys := chunk.Columns[j]
		gaps := false
		for _, y := range ys {
			if isNaN64(y) {
				gaps = true
				break
			}
		}
		outXs, outYs := minMaxLTTB(xs, ys, nOut, minMaxRatio)
		traces[j] = Trace{Name: col.Name, Xs: outXs, Ys: outYs, GapsPresent: gaps}
	}
	return traces
}
