package engine

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"os"
)

type rowEntry struct {
	Offset int64
	Length int32
}

// RowIndex is the byte-offset table: one (offset, length) pair per
// complete data row, header excluded.
type RowIndex struct {
	Entries      []rowEntry
	HeaderOffset int64
	FileSize     int64
	// NextOffset is the byte offset just past the last fully indexed row —
	// the exact, terminator-aware resume point for append_from, set by
	// scanRows rather than recomputed from the last entry (CRLF vs LF makes
	// a recomputed offset ambiguous).
	NextOffset  int64
	lastRowHash uint64
	haveLastRow bool
}

func (idx *RowIndex) RowCount() int { return len(idx.Entries) }

func checksumBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}

// readHeaderLine reads the first line of the file as the header. Unlike
// scanRows, a header with no trailing terminator (the file contains only
// a header line) is still valid: an empty-body file yields a zero-length
// index and is legal.
func readHeaderLine(f *os.File) (line []byte, headerOffset int64, err error) {
	r := bufio.NewReaderSize(f, 64*1024)
	raw, readErr := r.ReadBytes('\n')
	if len(raw) == 0 && readErr != nil {
		return nil, 0, ErrEmptyFile
	}
	if readErr != nil && readErr != io.EOF {
		return nil, 0, fmt.Errorf("%w: %v", ErrIO, readErr)
	}
	headerOffset = int64(len(raw))
	line = trimTerminator(raw)
	return line, headerOffset, nil
}

func trimTerminator(raw []byte) []byte {
	line := raw
	if n := len(line); n >= 1 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n >= 1 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// scanRows reads complete LF/CRLF-terminated lines starting at startOffset,
// invoking onLine for each with its absolute byte offset and
// terminator-stripped content. A trailing partial line (no terminator) is
// never passed to onLine — it will be picked up by a
// later append_from once it's complete. Returns the offset just past the
// last complete line seen, always a legal resume point.
func scanRows(f *os.File, startOffset int64, onLine func(offset int64, line []byte) error) (nextOffset int64, err error) {
	if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
		return startOffset, fmt.Errorf("%w: %v", ErrIO, err)
	}
	r := bufio.NewReaderSize(f, 256*1024)
	pos := startOffset
	for {
		raw, readErr := r.ReadBytes('\n')
		if len(raw) == 0 {
			break
		}
		if readErr != nil && readErr != io.EOF {
			return pos, fmt.Errorf("%w: %v", ErrIO, readErr)
		}
		if readErr == io.EOF {
			// Unterminated trailing bytes: either mid-write or a file with
			// no final newline. Either way, not indexed yet.
			break
		}
		line := trimTerminator(raw)
		if err := onLine(pos, line); err != nil {
			return pos, err
		}
		pos += int64(len(raw))
	}
	return pos, nil
}

// appendEntries extends idx with newly scanned rows, recomputing the
// checksum of the last row for the next resume-safety check.
func (idx *RowIndex) appendEntries(entries []rowEntry, newFileSize, nextOffset int64, lastRowBytes []byte, haveLastRow bool) {
	idx.Entries = append(idx.Entries, entries...)
	idx.FileSize = newFileSize
	idx.NextOffset = nextOffset
	if haveLastRow {
		idx.lastRowHash = checksumBytes(lastRowBytes)
		idx.haveLastRow = true
	}
}

// verifyResumePoint re-reads the previously indexed last row from disk and
// compares it against the checksum recorded at index-build time. A mismatch
// means bytes earlier in the file changed underneath the index (the file
// was rewritten, not purely appended to), and the caller must rebuild.
func (idx *RowIndex) verifyResumePoint(f *os.File) (bool, error) {
	if !idx.haveLastRow || len(idx.Entries) == 0 {
		return true, nil
	}
	last := idx.Entries[len(idx.Entries)-1]
	buf := make([]byte, last.Length)
	if _, err := f.ReadAt(buf, last.Offset); err != nil && err != io.EOF {
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return checksumBytes(buf) == idx.lastRowHash, nil
}
