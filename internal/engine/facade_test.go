package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func openTestHandle(t *testing.T, path string, results chan Result) *Handle {
	t.Helper()
	h, err := Open(path, Options{
		OnResult:     func(r Result) { results <- r },
		PollInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}

func TestOpenRejectsEmptyFile(t *testing.T) {
	path := writeCSVFile(t, "")
	if _, err := Open(path, Options{}); err == nil {
		t.Fatal("expected an error opening an empty file")
	}
}

func TestOpenRejectsNoNumericColumns(t *testing.T) {
	path := writeCSVFile(t, "ts,name\n1,alice\n2,bob\n")
	if _, err := Open(path, Options{}); err == nil {
		t.Fatal("expected an error when no numeric columns survive filtering")
	}
}

func TestOpenBuildsSchemaAndRowCount(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n3,30\n4,40\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	info := h.SchemaInfo()
	if info.TotalRows != 4 {
		t.Fatalf("expected 4 rows, got %d", info.TotalRows)
	}
	if len(info.Columns) != 1 || info.Columns[0].Name != "v" {
		t.Fatalf("expected the 'v' column retained, got %v", info.Columns)
	}
}

func TestRequestViewportDeliversResult(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n3,30\n4,40\n5,50\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	h.RequestViewport(0, 10)

	select {
	case r := <-results:
		if r.Discarded {
			t.Fatalf("expected a real result, got discarded: %v", r.DiscardReason)
		}
		if len(r.Traces) != 1 {
			t.Fatalf("expected one trace for the single retained column, got %d", len(r.Traces))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a viewport result")
	}
}

func TestRequestViewportEmptyBoundsNormalizeToFullRange(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n3,30\n4,40\n5,50\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	// x_start >= x_end is an empty viewport; it must resolve to the whole
	// file rather than an empty trace bundle.
	h.RequestViewport(5, 5)

	select {
	case r := <-results:
		if r.Discarded {
			t.Fatalf("expected a real result, got discarded: %v", r.DiscardReason)
		}
		if len(r.Traces) == 0 || len(r.Traces[0].Xs) != 5 {
			t.Fatalf("expected all 5 rows back for an empty/normalized viewport, got %v", r.Traces)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a viewport result")
	}
}

func TestReloadBumpsEpochAndRebuildsSchema(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	if err := os.WriteFile(path, []byte("ts,v,w\n1,10,100\n2,20,200\n3,30,300\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	info := h.SchemaInfo()
	if info.TotalRows != 3 {
		t.Fatalf("expected 3 rows after reload, got %d", info.TotalRows)
	}
	if len(info.Columns) != 2 {
		t.Fatalf("expected 2 numeric columns after reload, got %d", len(info.Columns))
	}
}

func TestQualityReportsAllMissingColumn(t *testing.T) {
	path := writeCSVFile(t, "ts,v,empty\n1,10,\n2,20,\n3,30,\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	quality := h.Quality()
	found := false
	for _, q := range quality {
		if q.Column == "empty" && q.Issue == QualityAllMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an AllMissing quality record for 'empty', got %v", quality)
	}
}

func TestSetFollowAndFollowerSnapshot(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	h.SetFollow(true)
	st := h.FollowerSnapshot()
	if !st.FollowEnabled {
		t.Fatal("expected follow to be enabled after SetFollow(true)")
	}
}

func TestProjectAxisRoundTrips(t *testing.T) {
	path := writeCSVFile(t, "ts,v\n1,10\n2,20\n3,30\n")
	results := make(chan Result, 10)
	h := openTestHandle(t, path, results)

	f, ok := h.ProjectAxis("2", 1)
	if !ok {
		t.Fatal("expected ProjectAxis to parse a valid axis value")
	}
	if f != 2 {
		t.Fatalf("expected projected value 2, got %v", f)
	}

	if _, ok := h.ProjectAxis("not-a-number", 0); ok {
		t.Fatal("expected ProjectAxis to reject an unparseable value for an int64 axis")
	}
}
