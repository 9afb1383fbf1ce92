package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AxisKind is the inferred type of the first ("axis") column, probed in a
// fixed order: signed integer, then float, then ISO-8601 UTC instant,
// then opaque string.
type AxisKind int

const (
	AxisInt64 AxisKind = iota
	AxisFloat64
	AxisInstant
	AxisString
)

func (k AxisKind) String() string {
	switch k {
	case AxisInt64:
		return "int64"
	case AxisFloat64:
		return "float64"
	case AxisInstant:
		return "instant"
	case AxisString:
		return "string"
	default:
		return "unknown"
	}
}

// utcInstantPattern matches the ISO-8601 UTC instant form:
// ^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$
var utcInstantPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$`)

// AxisValue is a parsed first-column value. Exactly one of I, F, T, S is
// meaningful, selected by Kind.
type AxisValue struct {
	Kind AxisKind
	I    int64
	F    float64
	T    time.Time
	S    string
}

func parseAxisValue(kind AxisKind, raw string) (AxisValue, bool) {
	switch kind {
	case AxisInt64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return AxisValue{}, false
		}
		return AxisValue{Kind: AxisInt64, I: i}, true
	case AxisFloat64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return AxisValue{}, false
		}
		return AxisValue{Kind: AxisFloat64, F: f}, true
	case AxisInstant:
		if !utcInstantPattern.MatchString(raw) {
			return AxisValue{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return AxisValue{}, false
		}
		return AxisValue{Kind: AxisInstant, T: t.UTC()}, true
	case AxisString:
		return AxisValue{Kind: AxisString, S: raw}, true
	}
	return AxisValue{}, false
}

// inferAxisKind probes the sample in AxisKind's fixed order and returns
// the first kind under which every sampled value parses. The
// opaque-string kind always succeeds, so this never fails for a non-empty
// sample.
func inferAxisKind(samples []string) AxisKind {
	for _, kind := range []AxisKind{AxisInt64, AxisFloat64, AxisInstant} {
		allParse := true
		for _, s := range samples {
			if _, ok := parseAxisValue(kind, strings.TrimSpace(s)); !ok {
				allParse = false
				break
			}
		}
		if allParse {
			return kind
		}
	}
	return AxisString
}

// compareAxis orders two values of the same kind. String axes compare
// lexicographically; the other kinds compare numerically/chronologically.
func compareAxis(a, b AxisValue) int {
	switch a.Kind {
	case AxisInt64:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	case AxisFloat64:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	case AxisInstant:
		if a.T.Before(b.T) {
			return -1
		}
		if a.T.After(b.T) {
			return 1
		}
		return 0
	default: // AxisString
		return strings.Compare(a.S, b.S)
	}
}

// axisRangeEligible answers "is this axis kind eligible for a strict
// range comparison". Opaque strings are
// orderable lexicographically but are not eligible for range-zoom —
// callers of locate() special-case that kind separately.
func axisRangeEligible(kind AxisKind) bool {
	return kind != AxisString
}

// toFloat64 projects an axis value to a numeric position usable for chart
// plotting and LTTB arithmetic. Instant
// axes use signed nanoseconds since the Unix epoch; string axes (not
// eligible for range-zoom) fall back to their row ordinal, supplied by the
// caller since AxisValue itself does not carry a row index.
func (a AxisValue) toFloat64(rowOrdinal int) float64 {
	switch a.Kind {
	case AxisInt64:
		return float64(a.I)
	case AxisFloat64:
		return a.F
	case AxisInstant:
		return float64(a.T.UnixNano())
	default: // AxisString
		return float64(rowOrdinal)
	}
}

// displayLabel renders the value for presentation, converting instants to
// local wall-clock time for the label while comparisons elsewhere always
// use the UTC instant.
func (a AxisValue) displayLabel() string {
	switch a.Kind {
	case AxisInt64:
		return strconv.FormatInt(a.I, 10)
	case AxisFloat64:
		return strconv.FormatFloat(a.F, 'g', -1, 64)
	case AxisInstant:
		return a.T.Local().Format(time.RFC3339)
	default:
		return a.S
	}
}

// ToFloat64 is the exported form of toFloat64, for callers outside the
// package (cmd/csvscope's axis-range display) that need the same
// projection without access to a row ordinal for non-string axes.
func (a AxisValue) ToFloat64(rowOrdinal int) float64 { return a.toFloat64(rowOrdinal) }

func isNaN64(f float64) bool { return math.IsNaN(f) }

func nan() float64 { return math.NaN() }

// parseNumericCell parses one retained column's raw field under its
// inferred kind. An empty field is always treated as missing (NaN, ok
// true) rather than malformed — missing/empty values are allowed in an
// otherwise-numeric column.
func parseNumericCell(kind ColumnKind, raw string) (float64, bool) {
	if raw == "" {
		return nan(), true
	}
	switch kind {
	case KindInt32, KindInt64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return float64(i), true
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}
