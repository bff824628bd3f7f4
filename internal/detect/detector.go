// Package detect scans record stores for fixed heuristic suspicion patterns:
// executable extensions, suspicious keywords, and suspicious path fragments.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// Rule type identifiers attached to every anomaly.
const (
	RuleSuspiciousExtension = "suspicious_extension"
	RuleSuspiciousKeyword   = "suspicious_keyword"
	RuleSuspiciousPath      = "suspicious_path"
)

// Severity levels for rule families.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Anomaly is a single heuristic-rule hit on one cell.
type Anomaly struct {
	Source      string `json:"source"`
	RuleType    string `json:"type"`
	Severity    string `json:"severity"`
	Column      string `json:"column"`
	Value       string `json:"value"`
	RowIndex    int    `json:"row_index"`
	Description string `json:"description"`
}

// Rules holds the injected pattern tables. Treat as immutable after
// construction.
type Rules struct {
	ExecutableExtensions []string
	SuspiciousKeywords   []string
	SuspiciousPaths      []string
}

// DefaultRules returns the built-in suspicion pattern tables.
func DefaultRules() Rules {
	return Rules{
		ExecutableExtensions: []string{
			".exe", ".dll", ".bat", ".cmd", ".ps1", ".vbs", ".scr", ".com",
		},
		SuspiciousKeywords: []string{
			"malware", "trojan", "virus", "backdoor", "keylogger",
			"ransomware", "rootkit", "exploit", "payload", "shellcode",
		},
		SuspiciousPaths: []string{
			`temp`, `tmp`, `appdata`, `local.*temp`,
			`programdata`, `windows.*system32`, `syswow64`,
		},
	}
}

// Detector scans datasets against a fixed rule set.
type Detector struct {
	rules        Rules
	pathPatterns []*regexp.Regexp
	logger       *zap.Logger
}

// NewDetector compiles the path patterns and returns a ready detector.
// Compilation failure indicates a broken rule table and is an error, not a
// runtime condition.
func NewDetector(rules Rules, logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]*regexp.Regexp, 0, len(rules.SuspiciousPaths))
	for _, p := range rules.SuspiciousPaths {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling path pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Detector{rules: rules, pathPatterns: patterns, logger: logger}, nil
}

// Scan returns every rule hit in the dataset. Each (pattern, column, row)
// positive test yields one anomaly; overlapping patterns on the same cell are
// deliberately not merged so downstream counts stay additive. Datasets with
// no textual cells produce an empty result.
func (d *Detector) Scan(ds *records.Dataset) []Anomaly {
	if ds == nil || ds.Len() == 0 {
		return nil
	}

	var anomalies []Anomaly

	// Case-fold textual cells once per column rather than per pattern.
	folded := foldTextColumns(ds)

	for _, ext := range d.rules.ExecutableExtensions {
		for _, col := range ds.Columns {
			cells, ok := folded[col]
			if !ok {
				continue
			}
			for rowIdx, cell := range cells {
				if cell == "" || !strings.Contains(cell, ext) {
					continue
				}
				anomalies = append(anomalies, Anomaly{
					Source:      ds.Name,
					RuleType:    RuleSuspiciousExtension,
					Severity:    SeverityMedium,
					Column:      col,
					Value:       cell,
					RowIndex:    rowIdx,
					Description: fmt.Sprintf("Found suspicious extension %s in %s", ext, col),
				})
			}
		}
	}

	for _, keyword := range d.rules.SuspiciousKeywords {
		for _, col := range ds.Columns {
			cells, ok := folded[col]
			if !ok {
				continue
			}
			for rowIdx, cell := range cells {
				if cell == "" || !strings.Contains(cell, keyword) {
					continue
				}
				anomalies = append(anomalies, Anomaly{
					Source:      ds.Name,
					RuleType:    RuleSuspiciousKeyword,
					Severity:    SeverityHigh,
					Column:      col,
					Value:       cell,
					RowIndex:    rowIdx,
					Description: fmt.Sprintf("Found suspicious keyword '%s' in %s", keyword, col),
				})
			}
		}
	}

	for _, re := range d.pathPatterns {
		for _, col := range ds.Columns {
			cells, ok := folded[col]
			if !ok {
				continue
			}
			for rowIdx, cell := range cells {
				if cell == "" || !re.MatchString(cell) {
					continue
				}
				anomalies = append(anomalies, Anomaly{
					Source:      ds.Name,
					RuleType:    RuleSuspiciousPath,
					Severity:    SeverityMedium,
					Column:      col,
					Value:       cell,
					RowIndex:    rowIdx,
					Description: fmt.Sprintf("Found suspicious path pattern in %s", col),
				})
			}
		}
	}

	return anomalies
}

// ScanAll runs Scan over every dataset in store iteration order and returns
// the flattened anomaly list.
func (d *Detector) ScanAll(store *records.Store) []Anomaly {
	if store == nil {
		return nil
	}

	var all []Anomaly
	for _, name := range store.Names() {
		ds, ok := store.Get(name)
		if !ok {
			continue
		}
		found := d.Scan(ds)
		if len(found) > 0 {
			d.logger.Info("pattern anomalies detected",
				zap.String("source", name),
				zap.Int("count", len(found)),
			)
		}
		all = append(all, found...)
	}
	return all
}

// foldTextColumns returns lowercased cell text per column, indexed by row.
// Only text cells participate in detection; numbers and nulls map to "".
func foldTextColumns(ds *records.Dataset) map[string][]string {
	folded := make(map[string][]string, len(ds.Columns))
	for _, col := range ds.Columns {
		hasText := false
		cells := make([]string, ds.Len())
		for i, row := range ds.Rows {
			v := row[col]
			if v.Kind() != records.KindText {
				continue
			}
			cells[i] = strings.ToLower(v.Text())
			hasText = true
		}
		if hasText {
			folded[col] = cells
		}
	}
	return folded
}
