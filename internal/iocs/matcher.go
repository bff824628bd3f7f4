package iocs

import (
	"strings"

	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// MatchKind distinguishes exact cell equality from substring containment.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
)

// Match records one indicator hit on one cell.
type Match struct {
	Source       string      `json:"source"`
	Indicator    string      `json:"ioc"`
	Kind         Kind        `json:"ioc_type"`
	MatchKind    MatchKind   `json:"match_type"`
	Column       string      `json:"column"`
	RowIndex     int         `json:"row_index"`
	MatchedValue string      `json:"matched_value"`
	FullRow      records.Row `json:"full_row"`
}

// Searcher scans datasets for indicator matches.
type Searcher struct {
	logger *zap.Logger
}

// NewSearcher returns a searcher.
func NewSearcher(logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{logger: logger}
}

// Search scans one dataset for every indicator and returns all matches.
//
// Every column participates, including numeric ones rendered as text; partial
// matching is therefore over-inclusive for short indicators in categorical
// columns. That mirrors how analysts actually run these sweeps: forensic
// tools export event IDs and ports as text, and suppressing those columns
// drops real hits.
//
// The case-folded dataset is computed once per call, not per indicator.
// At most one match is recorded per (indicator, column, row); a cell that
// satisfies both the exact and substring tests is recorded as exact.
func (s *Searcher) Search(ds *records.Dataset, indicators []string) []Match {
	if ds == nil || ds.Len() == 0 || len(indicators) == 0 {
		return nil
	}

	folded := foldDataset(ds)

	var matches []Match
	for _, raw := range indicators {
		normalized := strings.ToLower(strings.TrimSpace(raw))
		if normalized == "" {
			continue
		}
		kind := Classify(raw)

		for _, col := range ds.Columns {
			cells := folded[col]
			for rowIdx, cell := range cells {
				if cell == "" {
					continue
				}
				var mk MatchKind
				switch {
				case cell == normalized:
					mk = MatchExact
				case strings.Contains(cell, normalized):
					mk = MatchPartial
				default:
					continue
				}
				matches = append(matches, Match{
					Source:       ds.Name,
					Indicator:    raw,
					Kind:         kind,
					MatchKind:    mk,
					Column:       col,
					RowIndex:     rowIdx,
					MatchedValue: cell,
					FullRow:      ds.Rows[rowIdx].Clone(),
				})
			}
		}
	}
	return matches
}

// SearchAll runs Search over every dataset in store iteration order. The map
// omits sources with zero matches; the flat list preserves source order for
// downstream timeline insertion.
func (s *Searcher) SearchAll(store *records.Store, indicators []string) (map[string][]Match, []Match) {
	if store == nil {
		return nil, nil
	}

	bySource := make(map[string][]Match)
	var flat []Match
	for _, name := range store.Names() {
		ds, ok := store.Get(name)
		if !ok {
			continue
		}
		found := s.Search(ds, indicators)
		if len(found) == 0 {
			continue
		}
		s.logger.Info("indicator matches found",
			zap.String("source", name),
			zap.Int("count", len(found)),
		)
		bySource[name] = found
		flat = append(flat, found...)
	}
	return bySource, flat
}

// Summary aggregates match counts for reporting.
type Summary struct {
	TotalMatches int            `json:"total_matches"`
	BySource     map[string]int `json:"matches_by_source"`
	ByKind       map[string]int `json:"matches_by_ioc_type"`
	ByIndicator  map[string]int `json:"matches_by_ioc"`
}

// Summarize groups matches by source, indicator kind, and indicator value.
// Each grouping sums to TotalMatches.
func Summarize(matches []Match) Summary {
	summary := Summary{
		TotalMatches: len(matches),
		BySource:     make(map[string]int),
		ByKind:       make(map[string]int),
		ByIndicator:  make(map[string]int),
	}
	for _, m := range matches {
		summary.BySource[m.Source]++
		summary.ByKind[string(m.Kind)]++
		summary.ByIndicator[m.Indicator]++
	}
	return summary
}

// foldDataset lowercases every cell's textual rendering, per column. Numbers
// fold to their text form so indicators can hit numeric exports; nulls fold
// to "" and never match.
func foldDataset(ds *records.Dataset) map[string][]string {
	folded := make(map[string][]string, len(ds.Columns))
	for _, col := range ds.Columns {
		cells := make([]string, ds.Len())
		for i, row := range ds.Rows {
			v := row[col]
			if v.IsNull() {
				continue
			}
			cells[i] = strings.ToLower(v.Text())
		}
		folded[col] = cells
	}
	return folded
}
