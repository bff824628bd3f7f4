package iocs

import (
	"reflect"
	"testing"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

func processListDataset() *records.Dataset {
	ds := records.NewDataset("process_list", []string{"command_line", "pid"})
	ds.Append(records.Row{
		"command_line": records.Text(`C:\Users\a\AppData\Local\Temp\payload.exe`),
		"pid":          records.Number(4312),
	})
	ds.Append(records.Row{
		"command_line": records.Text("payload.exe"),
		"pid":          records.Number(998),
	})
	return ds
}

func TestSearch_ExactAndPartial(t *testing.T) {
	s := NewSearcher(nil)
	matches := s.Search(processListDataset(), []string{"payload.exe"})

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}

	// Row 0 contains the indicator inside a longer path: partial.
	if matches[0].RowIndex != 0 || matches[0].MatchKind != MatchPartial {
		t.Errorf("row 0 should be a partial match, got %+v", matches[0])
	}
	// Row 1 equals the indicator after case-folding: exact.
	if matches[1].RowIndex != 1 || matches[1].MatchKind != MatchExact {
		t.Errorf("row 1 should be an exact match, got %+v", matches[1])
	}

	for _, m := range matches {
		if m.Kind != KindExecutable {
			t.Errorf("indicator kind = %q, want executable", m.Kind)
		}
		if m.Source != "process_list" || m.Column != "command_line" {
			t.Errorf("unexpected match coordinates: %+v", m)
		}
		if m.FullRow == nil {
			t.Error("match should snapshot the full row")
		}
	}
}

func TestSearch_VerbatimCellYieldsExact(t *testing.T) {
	s := NewSearcher(nil)

	ds := records.NewDataset("dns", []string{"query"})
	ds.Append(records.Row{"query": records.Text("evil.example.com")})

	matches := s.Search(ds, []string{"EVIL.example.COM"})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].MatchKind != MatchExact {
		t.Errorf("verbatim cell should be exact, got %q", matches[0].MatchKind)
	}
}

func TestSearch_NumericColumnsParticipate(t *testing.T) {
	s := NewSearcher(nil)
	matches := s.Search(processListDataset(), []string{"4312"})

	if len(matches) != 1 {
		t.Fatalf("expected 1 match against the pid column, got %d", len(matches))
	}
	if matches[0].Column != "pid" || matches[0].MatchKind != MatchExact {
		t.Errorf("unexpected match: %+v", matches[0])
	}
}

func TestSearch_BlankIndicatorsSkipped(t *testing.T) {
	s := NewSearcher(nil)
	if got := s.Search(processListDataset(), []string{"", "   "}); len(got) != 0 {
		t.Errorf("blank indicators must not match, got %d", len(got))
	}
}

func TestSearch_LiteralNotPattern(t *testing.T) {
	s := NewSearcher(nil)

	ds := records.NewDataset("fs", []string{"path"})
	ds.Append(records.Row{"path": records.Text("report.doc")})
	ds.Append(records.Row{"path": records.Text("report-doc")})

	// A "." in the indicator must match only a literal dot.
	matches := s.Search(ds, []string{"report.doc"})
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].RowIndex != 0 {
		t.Errorf("indicator dot matched row %d, want 0", matches[0].RowIndex)
	}
}

func TestSearchAll_OrderAndOmission(t *testing.T) {
	s := NewSearcher(nil)

	store := records.NewStore()
	store.Add(processListDataset())
	clean := records.NewDataset("clean_source", []string{"note"})
	clean.Append(records.Row{"note": records.Text("nothing here")})
	store.Add(clean)

	bySource, flat := s.SearchAll(store, []string{"payload.exe"})

	if _, ok := bySource["clean_source"]; ok {
		t.Error("zero-match sources must be omitted from the map")
	}
	if len(bySource["process_list"]) != 2 {
		t.Errorf("expected 2 matches for process_list, got %d", len(bySource["process_list"]))
	}
	if len(flat) != 2 {
		t.Errorf("flat list length = %d, want 2", len(flat))
	}

	// Determinism: a second pass yields the identical flat list.
	_, again := s.SearchAll(store, []string{"payload.exe"})
	if !reflect.DeepEqual(flat, again) {
		t.Error("SearchAll must be deterministic across runs")
	}
}

func TestSummarize_CountsSum(t *testing.T) {
	s := NewSearcher(nil)

	store := records.NewStore()
	store.Add(processListDataset())
	dns := records.NewDataset("dns_log", []string{"query"})
	dns.Append(records.Row{"query": records.Text("evil.example.com")})
	store.Add(dns)

	_, flat := s.SearchAll(store, []string{"payload.exe", "evil.example.com"})
	summary := Summarize(flat)

	if summary.TotalMatches != len(flat) {
		t.Fatalf("TotalMatches = %d, want %d", summary.TotalMatches, len(flat))
	}
	for name, group := range map[string]map[string]int{
		"by_source":    summary.BySource,
		"by_kind":      summary.ByKind,
		"by_indicator": summary.ByIndicator,
	} {
		sum := 0
		for _, n := range group {
			sum += n
		}
		if sum != summary.TotalMatches {
			t.Errorf("%s sums to %d, want %d", name, sum, summary.TotalMatches)
		}
	}
}
