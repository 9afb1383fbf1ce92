package engine

import "time"

// ColumnKind is the inferred numeric storage kind of a retained data
// column. Values are always materialized as
// float64 internally — the same widening pandas itself performs the
// moment a numeric column contains any missing value — but the kind is
// still recorded for schema reporting and for picking the narrowest
// display precision.
type ColumnKind int

const (
	KindInt32 ColumnKind = iota
	KindInt64
	KindFloat32
	KindFloat64
)

func (k ColumnKind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	default:
		return "float64"
	}
}

// ColumnMeta describes one retained numeric column.
type ColumnMeta struct {
	Name string
	Kind ColumnKind
}

// Schema is the immutable column layout decided once at open.
type Schema struct {
	AxisName string
	AxisKind AxisKind
	Columns  []ColumnMeta
}

// QualityKind enumerates the quality records column classification can
// emit.
type QualityKind string

const (
	QualityAllMissing       QualityKind = "AllMissing"
	QualityHighMissingRatio QualityKind = "HighMissingRatio"
	QualityNonNumeric       QualityKind = "NonNumeric"
	QualitySchemaChange     QualityKind = "SchemaChange"
)

// QualityRecord is one entry of quality(handle).
type QualityRecord struct {
	Column       string
	Issue        QualityKind
	Ratio        float64  // meaningful for HighMissingRatio
	TopOffenders []string // malformed raw values seen most often
}

// Viewport is the half-open axis interval being requested or displayed.
// XStart/XEnd are projected axis positions (see AxisValue.toFloat64);
// Version and Epoch are the coordinator's counters.
type Viewport struct {
	XStart  float64
	XEnd    float64
	Version uint64
	Epoch   uint64
}

func (v Viewport) empty() bool { return v.XStart >= v.XEnd }

// Trace is one retained column's downsampled display series.
type Trace struct {
	Name        string
	Xs          []float64
	Ys          []float64
	GapsPresent bool
}

// ViewportResult describes the axis interval a Result actually covers,
// which may be clipped from the requested interval.
type ViewportResult struct {
	XStart  float64
	XEnd    float64
	Clipped bool
}

// Result is the façade callback payload.
type Result struct {
	Token         uint64
	Epoch         uint64
	Viewport      ViewportResult
	Traces        []Trace
	TotalRows     int
	MalformedRows int

	Discarded     bool
	DiscardReason DiscardReason
}

// RequestToken identifies one request_viewport call, so a caller can
// recognize which request a later result corresponds to.
type RequestToken = uint64

// FollowerState is the tail follower's externally-visible state.
type FollowerState struct {
	LastSize       int64
	LastModTime    time.Time
	FollowEnabled  bool
	Paused         bool
	DebounceUntil  time.Time
}

// SchemaInfo is the façade's schema(handle) response.
type SchemaInfo struct {
	AxisKind  AxisKind
	Columns   []ColumnMeta
	TotalRows int
	AxisMin   AxisValue
	AxisMax   AxisValue
	HasRows   bool
}
