package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoad_BasicCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "process_list.csv",
		"Process Name,PID,Command Line\n"+
			"svchost.exe,4312,C:\\Windows\\System32\\svchost.exe\n"+
			"payload.exe,998,\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ds, ok := store.Get("process_list")
	if !ok {
		t.Fatal("dataset should be keyed by file stem")
	}
	want := []string{"process_name", "pid", "command_line"}
	for i, col := range want {
		if ds.Columns[i] != col {
			t.Errorf("column %d = %q, want %q", i, ds.Columns[i], col)
		}
	}

	// Type coercion: numeric, text, empty-as-null.
	if v, _ := ds.Cell(0, "pid"); v.Kind() != records.KindNumber {
		t.Errorf("pid should coerce to number, got kind %v", v.Kind())
	}
	if v, _ := ds.Cell(0, "process_name"); v.Text() != "svchost.exe" {
		t.Errorf("process_name = %q", v.Text())
	}
	if v, _ := ds.Cell(1, "command_line"); !v.IsNull() {
		t.Error("empty cell should be null")
	}

	stats := ing.Stats()
	if stats.FilesFound != 1 || stats.FilesLoaded != 1 || stats.RowsLoaded != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLoad_SortedSourceOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zeta.csv", "a\n1\n")
	writeFile(t, dir, "alpha.csv", "a\n1\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	names := store.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("store order = %v, want sorted file order", names)
	}
}

func TestLoad_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "")
	writeFile(t, dir, "good.csv", "path\n/tmp/a\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load should not fail on a bad file: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("store should hold only the good file, got %d", store.Len())
	}
	if ing.Stats().FilesFound != 2 || ing.Stats().FilesLoaded != 1 {
		t.Errorf("stats = %+v", ing.Stats())
	}
}

func TestLoad_Latin1Fallback(t *testing.T) {
	dir := t.TempDir()
	// 0xE9 is "é" in latin-1 and invalid as a UTF-8 start byte here.
	writeFile(t, dir, "notes.csv", "note\ncaf\xe9\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ds, _ := store.Get("notes")
	if v, _ := ds.Cell(0, "note"); v.Text() != "café" {
		t.Errorf("latin-1 decode failed, got %q", v.Text())
	}
}

func TestLoad_RaggedRowsPadded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ragged.csv", "a,b,c\n1,2\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ds, _ := store.Get("ragged")
	if v, ok := ds.Cell(0, "c"); !ok || !v.IsNull() {
		t.Error("short rows should be padded with nulls")
	}
}

func TestLoad_DuplicateColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dup.csv", "name,name\nfirst,second\n")

	ing := NewIngester(Config{Directory: dir}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ds, _ := store.Get("dup")
	v1, _ := ds.Cell(0, "name")
	v2, _ := ds.Cell(0, "name_2")
	if v1.Text() != "first" || v2.Text() != "second" {
		t.Errorf("duplicate columns should be disambiguated, got %q / %q", v1.Text(), v2.Text())
	}
}

func TestLoad_MaxRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.csv", "n\n1\n2\n3\n4\n")

	ing := NewIngester(Config{Directory: dir, MaxRows: 2}, nil)
	store, err := ing.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ds, _ := store.Get("big")
	if ds.Len() != 2 {
		t.Errorf("row cap not applied, got %d rows", ds.Len())
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	ing := NewIngester(Config{Directory: "/nonexistent/forensics"}, nil)
	if _, err := ing.Load(); err == nil {
		t.Error("missing directory should be an error")
	}
}
