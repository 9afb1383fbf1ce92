package engine

import "strconv"

// highMissingRatioThreshold is the ">50% missing" quality-flag threshold.
const highMissingRatioThreshold = 0.5

// classifyResult is the per-column verdict of the sampling pass.
type classifyResult struct {
	kind         ColumnKind
	numeric      bool
	missingRatio float64
}

// inferNumericKind classifies a column's non-missing sampled values,
// picking the narrowest of {int32, int64, float32, float64} under which
// every value parses.
func inferNumericKind(nonMissing []string) (ColumnKind, bool) {
	if len(nonMissing) == 0 {
		return KindFloat64, false
	}
	allInt := true
	fitsInt32 := true
	for _, v := range nonMissing {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			allInt = false
			break
		}
		if i < -(1<<31) || i > (1<<31-1) {
			fitsInt32 = false
		}
	}
	if allInt {
		if fitsInt32 {
			return KindInt32, true
		}
		return KindInt64, true
	}

	allFloat := true
	fitsFloat32 := true
	for _, v := range nonMissing {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			allFloat = false
			break
		}
		if float64(float32(f)) != f {
			fitsFloat32 = false
		}
	}
	if !allFloat {
		return KindFloat64, false
	}
	if fitsFloat32 {
		return KindFloat32, true
	}
	return KindFloat64, true
}

// classifyColumn applies the ordered classification rules to one sampled
// column (raw field strings; "" denotes a missing/empty field).
func classifyColumn(values []string) (classifyResult, QualityKind, bool) {
	if len(values) == 0 {
		return classifyResult{}, QualityAllMissing, false
	}
	nonMissing := make([]string, 0, len(values))
	missing := 0
	for _, v := range values {
		if v == "" {
			missing++
			continue
		}
		nonMissing = append(nonMissing, v)
	}
	ratio := float64(missing) / float64(len(values))
	if len(nonMissing) == 0 {
		return classifyResult{missingRatio: ratio}, QualityAllMissing, false
	}
	kind, numeric := inferNumericKind(nonMissing)
	if !numeric {
		return classifyResult{missingRatio: ratio}, QualityNonNumeric, false
	}
	return classifyResult{kind: kind, numeric: true, missingRatio: ratio}, "", true
}

// filterColumns decides the retained numeric schema and quality report,
// given the header and a prefix sample of split rows (only rows whose
// field count matches the header are considered — malformed rows don't
// participate in inference).
func filterColumns(header []string, sampleRows [][]string) (Schema, []QualityRecord, error) {
	ncols := len(header)
	axisValues := make([]string, 0, len(sampleRows))
	for _, row := range sampleRows {
		if len(row) == ncols {
			axisValues = append(axisValues, row[0])
		}
	}
	axisKind := inferAxisKind(axisValues)

	var columns []ColumnMeta
	var quality []QualityRecord
	for col := 1; col < ncols; col++ {
		values := make([]string, 0, len(sampleRows))
		for _, row := range sampleRows {
			if len(row) == ncols {
				values = append(values, row[col])
			}
		}
		result, issue, retained := classifyColumn(values)
		name := header[col]
		if !retained {
			if issue != "" {
				quality = append(quality, QualityRecord{Column: name, Issue: issue, Ratio: result.missingRatio})
			}
			continue
		}
		columns = append(columns, ColumnMeta{Name: name, Kind: result.kind})
		if result.missingRatio > highMissingRatioThreshold {
			quality = append(quality, QualityRecord{Column: name, Issue: QualityHighMissingRatio, Ratio: result.missingRatio})
		}
	}

	if len(columns) == 0 {
		return Schema{}, quality, newEngineError(KindNoNumericColumns, "", ErrNoNumericColumns)
	}

	return Schema{AxisName: header[0], AxisKind: axisKind, Columns: columns}, quality, nil
}
