package timeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

func datasetWithTimes(name string, times []string) *records.Dataset {
	ds := records.NewDataset(name, []string{"timestamp", "message"})
	for _, ts := range times {
		row := records.Row{"message": records.Text("entry")}
		if ts == "" {
			row["timestamp"] = records.Null()
		} else {
			row["timestamp"] = records.Text(ts)
		}
		ds.Append(row)
	}
	return ds
}

func TestFinalize_Ordering(t *testing.T) {
	b := NewBuilder("jdoe", nil)
	ds := datasetWithTimes("process_list", []string{
		"2024-06-01 12:00:00",
		"", // undated
		"2024-01-01 00:00:00",
		"", // undated
	})

	for i := 0; i < ds.Len(); i++ {
		b.AddAnomaly(AnomalyFinding{
			RuleType:    "suspicious_keyword",
			Column:      "message",
			RowIndex:    i,
			Description: "entry " + string(rune('a'+i)),
		}, ds, "process_list")
	}

	out := b.Finalize()
	if len(out) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(out))
	}

	// Dated findings first, chronological.
	if out[0].Timestamp == nil || *out[0].Timestamp != "2024-01-01 00:00:00" {
		t.Errorf("out[0] = %v", out[0].Timestamp)
	}
	if out[1].Timestamp == nil || *out[1].Timestamp != "2024-06-01 12:00:00" {
		t.Errorf("out[1] = %v", out[1].Timestamp)
	}

	// Undated tail preserves insertion order.
	if out[2].Event != "entry b" || out[3].Event != "entry d" {
		t.Errorf("undated tail out of order: %q, %q", out[2].Event, out[3].Event)
	}
	if out[2].Timestamp != nil || out[3].Timestamp != nil {
		t.Error("undated findings must keep nil timestamps")
	}
}

func TestFinalize_StableTies(t *testing.T) {
	b := NewBuilder("jdoe", nil)
	ds := datasetWithTimes("process_list", []string{
		"2024-03-15 10:22:05",
		"2024-03-15 10:22:05",
		"2024-03-15 10:22:05",
	})

	for i := 0; i < ds.Len(); i++ {
		b.AddAnomaly(AnomalyFinding{
			RuleType:    "suspicious_path",
			Column:      "message",
			RowIndex:    i,
			Description: "tie " + string(rune('0'+i)),
		}, ds, "process_list")
	}

	out := b.Finalize()
	for i, want := range []string{"tie 0", "tie 1", "tie 2"} {
		if out[i].Event != want {
			t.Errorf("tie order broken at %d: got %q, want %q", i, out[i].Event, want)
		}
	}
}

func TestFinalize_NoDedup(t *testing.T) {
	b := NewBuilder("jdoe", nil)
	ds := datasetWithTimes("process_list", []string{"2024-03-15 10:22:05"})

	// Two independent detections of the same row stay two findings.
	b.AddAnomaly(AnomalyFinding{RuleType: "suspicious_extension", Column: "message", RowIndex: 0, Description: "ext"}, ds, "process_list")
	b.AddMatch(MatchFinding{Indicator: "payload.exe", Kind: "executable", Column: "message", RowIndex: 0, MatchedValue: "payload.exe"}, ds, "process_list")

	if got := len(b.Finalize()); got != 2 {
		t.Errorf("expected 2 findings, got %d", got)
	}
}

func TestWriteCSV_EmptyTimelineEmitsHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("empty timeline should emit exactly the header, got %d lines", len(lines))
	}
	if lines[0] != strings.Join(Columns, ",") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestWriteCSV_RowShape(t *testing.T) {
	b := NewBuilder("jdoe", nil)
	b.AddThreat(Threat{
		Source:      "process_list",
		Type:        "malware",
		Severity:    "critical",
		Description: "beacon detected",
	}, nil, -1)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, b.Finalize()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "beacon detected") || !strings.Contains(lines[1], "Malicious") {
		t.Errorf("row = %q", lines[1])
	}
	if fields := strings.Split(lines[1], ","); len(fields) != len(Columns) {
		t.Errorf("row has %d fields, want %d", len(fields), len(Columns))
	}
}
