package engine

import (
	"os"
	"testing"
)

func writeTempCSV(t *testing.T, content string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rowindex-*.csv")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestReadHeaderLineDoesNotRequireTrailingNewline(t *testing.T) {
	f := writeTempCSV(t, "a,b,c")
	header, offset, err := readHeaderLine(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(header) != "a,b,c" {
		t.Fatalf("got header %q", header)
	}
	if offset != 5 {
		t.Fatalf("expected header offset 5, got %d", offset)
	}
}

func TestReadHeaderLineEmptyFile(t *testing.T) {
	f := writeTempCSV(t, "")
	if _, _, err := readHeaderLine(f); err == nil {
		t.Fatal("expected an error for an empty file")
	}
}

func TestScanRowsHandlesLFAndCRLF(t *testing.T) {
	f := writeTempCSV(t, "h\n1,2\r\n3,4\n5,6")
	// skip the header line manually
	var lines [][]byte
	next, err := scanRows(f, 2, func(offset int64, line []byte) error {
		lines = append(lines, append([]byte{}, line...))
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 complete rows (the trailing unterminated line excluded), got %d: %v", len(lines), lines)
	}
	if string(lines[0]) != "1,2" || string(lines[1]) != "3,4" {
		t.Fatalf("unexpected row content: %q", lines)
	}
	if string(lines[0]) == "1,2\r" {
		t.Fatal("CRLF terminator should be stripped")
	}
	wantNext := int64(len("h\n1,2\r\n3,4\n"))
	if next != wantNext {
		t.Fatalf("nextOffset = %d, want %d", next, wantNext)
	}
}

func TestScanRowsExcludesUnterminatedTrailingLine(t *testing.T) {
	f := writeTempCSV(t, "h\n1,2\n3,4")
	var count int
	next, err := scanRows(f, 2, func(offset int64, line []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the terminated row to be indexed, got %d", count)
	}
	if next != int64(len("h\n1,2\n")) {
		t.Fatalf("nextOffset should stop right after the last complete line, got %d", next)
	}
}

func TestAppendEntriesAndVerifyResumePoint(t *testing.T) {
	f := writeTempCSV(t, "h\n1,2\n3,4\n")
	idx := &RowIndex{HeaderOffset: 2}
	next, err := scanRows(f, idx.HeaderOffset, func(offset int64, line []byte) error {
		idx.appendEntries([]rowEntry{{Offset: offset, Length: int32(len(line))}}, 0, 0, line, true)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx.NextOffset = next
	idx.FileSize = next

	if idx.RowCount() != 2 {
		t.Fatalf("expected 2 rows indexed, got %d", idx.RowCount())
	}

	ok, err := idx.verifyResumePoint(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected resume point to verify cleanly against its own checksum")
	}
}

func TestVerifyResumePointDetectsRewrite(t *testing.T) {
	f := writeTempCSV(t, "h\n1,2\n3,4\n")
	idx := &RowIndex{HeaderOffset: 2}
	_, err := scanRows(f, idx.HeaderOffset, func(offset int64, line []byte) error {
		idx.appendEntries([]rowEntry{{Offset: offset, Length: int32(len(line))}}, 0, 0, line, true)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := idx.Entries[len(idx.Entries)-1]
	if _, err := f.WriteAt([]byte("9,9"), last.Offset); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	ok, err := idx.verifyResumePoint(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a rewritten last row to fail checksum verification")
	}
}

func TestVerifyResumePointEmptyIndexAlwaysOK(t *testing.T) {
	idx := &RowIndex{}
	f := writeTempCSV(t, "h\n")
	ok, err := idx.verifyResumePoint(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("an empty index has nothing to verify, should report ok")
	}
}
