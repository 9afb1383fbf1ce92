// Package engine implements the streaming CSV viewport visualization
// engine: a row-offset index, a sparse x-value index, a ranged reader, a
// column filter, a min-max/LTTB downsampler, a viewport coordinator, a
// tail follower, and the trace assembler that ties a fetch's output into
// display-ready series. Handle is the façade over all of it.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"csvscope/internal/diagnostics"
	"csvscope/internal/metrics"
)

// maxFetchRowSpan bounds a single fetch's materialize/downsample cost
// regardless of how wide a requested viewport is. A request spanning
// more rows than this is narrowed to a trailing rolling window of this
// size — the most recent rows within the requested range — and the
// result reports Clipped so the caller can annotate it.
const maxFetchRowSpan = 2_000_000

// Options configures a call to Open.
type Options struct {
	SparseIndexStride int
	MaxDisplayPoints  int
	MinMaxRatio       float64
	PollInterval      time.Duration
	Follow            bool

	// SampleRowsMin and SampleRowRate size the prefix sample used for
	// schema inference: at least SampleRowsMin rows, or SampleRowRate of
	// total rows, whichever is larger.
	SampleRowsMin int
	SampleRowRate float64

	DiagnosticsTopK   int
	DiagnosticsWindow time.Duration

	StatsEnabled bool
	StatsWindow  int

	// OnResult receives every non-discarded and discarded viewport result.
	// Required: without it, fetches still run but their output is
	// unobservable.
	OnResult func(Result)

	Logger *slog.Logger
}

func (o *Options) normalize() {
	if o.SparseIndexStride < 1 {
		o.SparseIndexStride = DefaultSparseIndexStride
	}
	if o.MaxDisplayPoints < 2 {
		o.MaxDisplayPoints = 2000
	}
	if o.MinMaxRatio <= 0 {
		o.MinMaxRatio = DefaultMinMaxRatio
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.SampleRowsMin < 1 {
		o.SampleRowsMin = MinSampleRows
	}
	if o.SampleRowRate <= 0 || o.SampleRowRate > 1 {
		o.SampleRowRate = SampleRowRatio
	}
	if o.DiagnosticsTopK < 1 {
		o.DiagnosticsTopK = 16
	}
	if o.DiagnosticsWindow <= 0 {
		o.DiagnosticsWindow = time.Minute
	}
	if o.StatsWindow < 1 {
		o.StatsWindow = 256
	}
	if o.OnResult == nil {
		o.OnResult = func(Result) {}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Handle is the single entry point owning the shared row index, sparse
// x index and schema under one RWMutex, plus the viewport coordinator
// worker and, optionally, the tail follower watcher.
type Handle struct {
	path string
	opts Options

	mu       sync.RWMutex
	header   []string
	rowIndex *RowIndex
	xIndex   *XIndex
	schema   Schema
	quality  []QualityRecord

	lastViewport viewportRequest

	coordinator *Coordinator
	follower    *Follower
	diag        *diagnostics.Tracker
	stats       *metrics.Recorder

	logger *slog.Logger
}

// Open implements open(path, options): builds the Row
// Index in one scan of the file, infers the schema from a prefix sample,
// and then builds the Sparse X Index in a second sequential scan.
func Open(path string, opts Options) (*Handle, error) {
	opts.normalize()

	header, idx, xindex, schema, quality, err := buildAll(path, opts.SparseIndexStride, opts.SampleRowsMin, opts.SampleRowRate)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		path:     path,
		opts:     opts,
		header:   header,
		rowIndex: idx,
		xIndex:   xindex,
		schema:   schema,
		quality:  quality,
		logger:   opts.Logger,
		diag:     diagnostics.New(opts.DiagnosticsTopK, 60, opts.DiagnosticsWindow/60),
		stats:    metrics.New(opts.StatsWindow),
	}
	h.stats.SetEnabled(opts.StatsEnabled)
	h.diag.StartTicking()

	h.coordinator = newCoordinator(h.fetch, h.emit)

	stat, statErr := os.Stat(path)
	if statErr == nil {
		h.follower = newFollower(path, opts.PollInterval, FollowerState{
			LastSize:      stat.Size(),
			LastModTime:   stat.ModTime(),
			FollowEnabled: opts.Follow,
		}, h.onTailEvent)
		h.follower.start()
	}

	return h, nil
}

// buildAll performs the full index/schema/x-index build used by both
// Open and Reload.
func buildAll(path string, stride, sampleRowsMin int, sampleRowRate float64) ([]string, *RowIndex, *XIndex, Schema, []QualityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, Schema{}, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, nil, Schema{}, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if stat.Size() == 0 {
		return nil, nil, nil, Schema{}, nil, newEngineError(KindEmptyFile, "", ErrEmptyFile)
	}

	headerLine, headerOffset, err := readHeaderLine(f)
	if err != nil {
		return nil, nil, nil, Schema{}, nil, err
	}
	header := splitCSVRow(headerLine)
	if len(header) < 2 {
		return nil, nil, nil, Schema{}, nil, newEngineError(KindNoHeader, "need an axis column plus at least one data column", ErrNoHeader)
	}

	idx := &RowIndex{HeaderOffset: headerOffset}
	var entries []rowEntry
	var lastLine []byte
	haveLast := false
	nextOffset, err := scanRows(f, headerOffset, func(offset int64, line []byte) error {
		buf := make([]byte, len(line))
		copy(buf, line)
		entries = append(entries, rowEntry{Offset: offset, Length: int32(len(buf))})
		lastLine = buf
		haveLast = true
		return nil
	})
	if err != nil {
		return nil, nil, nil, Schema{}, nil, err
	}
	idx.appendEntries(entries, stat.Size(), nextOffset, lastLine, haveLast)

	// A header-only file opens with zero rows and no retained columns.
	if idx.RowCount() == 0 {
		return header, idx, newXIndex(stride), Schema{AxisName: header[0]}, nil, nil
	}

	schema, quality, err := buildSchema(f, idx, header, sampleRowsMin, sampleRowRate)
	if err != nil {
		return header, idx, nil, Schema{}, quality, err
	}

	xindex, err := buildXIndex(f, idx, schema.AxisKind, stride)
	if err != nil {
		return header, idx, nil, schema, quality, err
	}

	return header, idx, xindex, schema, quality, nil
}

// RequestViewport implements request_viewport(handle, x_start, x_end).
// Bounds are axis-projected float64 positions; use ProjectAxis to
// convert a raw field value into that space.
func (h *Handle) RequestViewport(xStart, xEnd float64) RequestToken {
	h.mu.Lock()
	h.lastViewport = viewportRequest{xStart: xStart, xEnd: xEnd}
	h.mu.Unlock()
	return h.coordinator.RequestViewport(xStart, xEnd)
}

// SetFollow implements set_follow(handle, enabled).
func (h *Handle) SetFollow(enabled bool) {
	if h.follower != nil {
		h.follower.SetFollow(enabled)
	}
}

// FollowerSnapshot exposes the tail follower's state, or the zero value
// if the handle has no follower (stat failed at open).
func (h *Handle) FollowerSnapshot() FollowerState {
	if h.follower == nil {
		return FollowerState{}
	}
	return h.follower.Snapshot()
}

// Reload implements reload(handle): rebuild every index
// from scratch and bump the epoch so any in-flight or already-completed
// stale fetch is discarded rather than shown.
func (h *Handle) Reload() error {
	header, idx, xindex, schema, quality, err := buildAll(h.path, h.opts.SparseIndexStride, h.opts.SampleRowsMin, h.opts.SampleRowRate)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.header, h.rowIndex, h.xIndex, h.schema, h.quality = header, idx, xindex, schema, quality
	h.mu.Unlock()
	h.coordinator.BumpEpoch()
	return nil
}

// SchemaInfo implements schema(handle).
func (h *Handle) SchemaInfo() SchemaInfo {
	h.mu.RLock()
	schema := h.schema
	idx := h.rowIndex
	h.mu.RUnlock()

	info := SchemaInfo{AxisKind: schema.AxisKind, Columns: schema.Columns, TotalRows: idx.RowCount(), HasRows: idx.RowCount() > 0}
	if info.HasRows {
		if f, err := os.Open(h.path); err == nil {
			defer f.Close()
			if av, ok, _ := axisAt(f, idx, schema.AxisKind, 0); ok {
				info.AxisMin = av
			}
			if av, ok, _ := axisAt(f, idx, schema.AxisKind, idx.RowCount()-1); ok {
				info.AxisMax = av
			}
		}
	}
	return info
}

// Quality implements quality(handle), filling in
// TopOffenders from the malformed-value diagnostics tracker.
func (h *Handle) Quality() []QualityRecord {
	h.mu.RLock()
	records := make([]QualityRecord, len(h.quality))
	copy(records, h.quality)
	h.mu.RUnlock()

	offenders := h.diag.Top(5)
	names := make([]string, len(offenders))
	for j, off := range offenders {
		names[j] = off.Value
	}
	for i := range records {
		records[i].TopOffenders = names
	}
	return records
}

// Stats reports the handle's runtime performance counters, or the zero
// value if stats were not enabled at Open.
func (h *Handle) Stats() metrics.Snapshot {
	return h.stats.Snapshot()
}

// ProjectAxis parses a raw field string under the handle's axis kind and
// projects it to the float64 space RequestViewport expects.
func (h *Handle) ProjectAxis(raw string, rowOrdinal int) (float64, bool) {
	h.mu.RLock()
	kind := h.schema.AxisKind
	h.mu.RUnlock()
	av, ok := parseAxisValue(kind, raw)
	if !ok {
		return 0, false
	}
	return av.toFloat64(rowOrdinal), true
}

// Close implements close(handle): stops the worker and
// watcher goroutines. Safe to call once; further engine calls on this
// handle are not safe afterward.
func (h *Handle) Close() {
	h.coordinator.Close()
	if h.follower != nil {
		h.follower.Stop()
	}
	h.diag.Close()
}

// fetch is the Coordinator's fetchFunc: it opens a fresh file handle (no
// descriptor is held between fetches), resolves the viewport to a row
// range, materializes it, downsamples it, and reports tail-follow pause
// state for the row range it actually touched.
func (h *Handle) fetch(req viewportRequest, token RequestToken, epoch uint64) (Result, error) {
	start := time.Now()

	h.mu.RLock()
	idx, xindex, schema := h.rowIndex, h.xIndex, h.schema
	h.mu.RUnlock()
	total := idx.RowCount()

	f, err := os.Open(h.path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	var rowLo, rowHi int
	if (Viewport{XStart: req.xStart, XEnd: req.xEnd}).empty() {
		// An empty viewport (x_start >= x_end) normalizes to the full range
		// rather than resolving through the axis-value machinery below,
		// which only handles finite, in-range bounds.
		rowLo, rowHi = 0, total
	} else {
		lo := axisValueFromFloat(schema.AxisKind, req.xStart)
		hi := axisValueFromFloat(schema.AxisKind, req.xEnd)
		rowLo, rowHi, err = computeRowRange(f, idx, xindex, schema.AxisKind, lo, hi)
		if err != nil {
			return Result{}, err
		}
	}

	clipped := false
	if rowHi-rowLo > maxFetchRowSpan {
		rowLo = rowHi - maxFetchRowSpan
		clipped = true
	}

	lines, err := readRawRows(f, idx, rowLo, rowHi)
	if err != nil {
		return Result{}, err
	}
	chunk := materializeChunk(lines, schema)
	h.diag.ObserveAll(chunk.MalformedValues)
	h.stats.ObserveRowsRead(len(chunk.Axis), time.Now())

	traces := assembleTraces(chunk, schema, rowLo, h.opts.MaxDisplayPoints, h.opts.MinMaxRatio)

	actualXStart, actualXEnd := req.xStart, req.xEnd
	if n := len(chunk.Axis); n > 0 {
		actualXStart = chunk.Axis[0].toFloat64(rowLo)
		actualXEnd = chunk.Axis[n-1].toFloat64(rowLo + n - 1)
	}

	if h.follower != nil {
		h.follower.autoPauseIfAway(isAtTail(total, rowHi))
	}

	h.stats.ObserveFetch(time.Since(start), false, false)

	return Result{
		Token:         token,
		Epoch:         epoch,
		Viewport:      ViewportResult{XStart: actualXStart, XEnd: actualXEnd, Clipped: clipped},
		Traces:        traces,
		TotalRows:     total,
		MalformedRows: chunk.MalformedRows,
	}, nil
}

func (h *Handle) emit(r Result) {
	if r.Discarded {
		h.stats.ObserveFetch(0, true, r.DiscardReason.Kind == "io_error")
	}
	h.opts.OnResult(r)
}

// axisValueFromFloat inverts AxisValue.toFloat64 for the kinds that are
// range-eligible; for AxisString it returns a placeholder value, which
// computeRowRange never compares (it returns the whole file for that kind).
func axisValueFromFloat(kind AxisKind, f float64) AxisValue {
	switch kind {
	case AxisInt64:
		return AxisValue{Kind: AxisInt64, I: int64(f)}
	case AxisInstant:
		return AxisValue{Kind: AxisInstant, T: time.Unix(0, int64(f)).UTC()}
	case AxisFloat64:
		return AxisValue{Kind: AxisFloat64, F: f}
	default:
		return AxisValue{Kind: AxisString}
	}
}

// onTailEvent is the Follower's callback: it applies the growth/rebuild
// decision under the façade's lock and, on success, re-requests the
// in-flight viewport so a follow-enabled, unpaused consumer sees new
// rows without a manual nudge.
func (h *Handle) onTailEvent(ev tailEvent, size int64, modTime time.Time) {
	switch ev {
	case tailNoChange:
		return
	case tailGrew:
		h.handleGrowth(size, modTime)
	case tailShrunk:
		h.handleRebuild()
	case tailRewrittenSameSize:
		h.handleSameSizeRewrite(size, modTime)
	case tailFileGone:
		h.logger.Warn("tail follower: file disappeared", "path", h.path)
	}
}

// handleSameSizeRewrite handles a size-unchanged mtime bump: probe the
// last indexed row's bytes rather than assuming a rewrite happened.
// Touching a file (or a rewrite that happens to reproduce the same
// trailing row) leaves the index still valid, so there's nothing to do;
// only a genuine change to the last row's bytes invalidates it.
func (h *Handle) handleSameSizeRewrite(size int64, modTime time.Time) {
	f, err := os.Open(h.path)
	if err != nil {
		h.logger.Warn("tail follower: reopen failed", "err", err)
		return
	}
	defer f.Close()

	h.mu.RLock()
	idx := h.rowIndex
	h.mu.RUnlock()

	ok, err := idx.verifyResumePoint(f)
	if err != nil {
		h.logger.Warn("tail follower: resume-point probe failed", "err", err)
		return
	}
	if ok {
		if h.follower != nil {
			h.follower.updatePosition(size, modTime)
		}
		return
	}
	h.handleRebuild()
}

func (h *Handle) handleGrowth(size int64, modTime time.Time) {
	f, err := os.Open(h.path)
	if err != nil {
		h.logger.Warn("tail follower: reopen failed", "err", err)
		return
	}
	defer f.Close()

	h.mu.Lock()
	idx := h.rowIndex
	axisKind := h.schema.AxisKind
	ok, err := idx.verifyResumePoint(f)
	if err != nil || !ok {
		h.mu.Unlock()
		h.handleRebuild()
		return
	}

	lastRowOfOld := idx.RowCount() - 1
	var prevAxis AxisValue
	havePrev := false
	if lastRowOfOld >= 0 {
		if av, ok, _ := axisAt(f, idx, axisKind, lastRowOfOld); ok {
			prevAxis, havePrev = av, true
		}
	}

	firstNewRow := idx.RowCount()
	var entries []rowEntry
	var lastLine []byte
	haveLast := false
	row := firstNewRow
	nextOffset, err := scanRows(f, idx.NextOffset, func(offset int64, line []byte) error {
		buf := make([]byte, len(line))
		copy(buf, line)
		entries = append(entries, rowEntry{Offset: offset, Length: int32(len(buf))})
		lastLine = buf
		haveLast = true

		fields := splitCSVRow(buf)
		if len(fields) > 0 {
			if av, ok := parseAxisValue(axisKind, fields[0]); ok {
				if !checkMonotonic(prevAxis, av, havePrev) {
					return newEngineError(KindNonMonotonicAxis, fmt.Sprintf("row %d", row), ErrNonMonotonicAxis)
				}
				prevAxis, havePrev = av, true
				if h.xIndex.shouldSample(row) {
					h.xIndex.addSample(row, av)
				}
			}
		}
		row++
		return nil
	})
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("tail follower: growth rejected", "err", err)
		return
	}
	idx.appendEntries(entries, size, nextOffset, lastLine, haveLast)
	if havePrev && idx.RowCount() > 0 {
		h.xIndex.addSample(idx.RowCount()-1, prevAxis)
	}
	h.mu.Unlock()

	if h.follower != nil {
		h.follower.updatePosition(size, modTime)
		if st := h.follower.Snapshot(); st.FollowEnabled && !st.Paused {
			h.mu.RLock()
			last := h.lastViewport
			h.mu.RUnlock()
			width := last.xEnd - last.xStart
			if width > 0 {
				newEnd := prevAxis.toFloat64(idx.RowCount() - 1)
				h.RequestViewport(newEnd-width, newEnd)
			}
		}
	}
}

func (h *Handle) handleRebuild() {
	if err := h.Reload(); err != nil {
		h.logger.Warn("tail follower: rebuild failed", "err", err)
	}
}
