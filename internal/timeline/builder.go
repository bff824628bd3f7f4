package timeline

import (
	"encoding/csv"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// Columns is the exact output column set, in order.
var Columns = []string{
	"Timestamp", "Device Name", "Account", "Event", "Artifact",
	"Event ID", "Analyst", "Comments", "Level",
}

// Builder accumulates findings from matches, anomalies, and threats, then
// emits a chronologically ordered timeline. Accumulation is append-only;
// ordering happens once, in Finalize.
type Builder struct {
	normalizer *Normalizer
	logger     *zap.Logger
	findings   []Finding
}

// NewBuilder returns a builder whose findings carry the analyst name.
func NewBuilder(analyst string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{normalizer: NewNormalizer(analyst), logger: logger}
}

// AddMatch appends a finding normalized from an indicator match.
func (b *Builder) AddMatch(m MatchFinding, ds *records.Dataset, sourceName string) {
	b.findings = append(b.findings, b.normalizer.FromMatch(m, ds, sourceName))
}

// AddAnomaly appends a finding normalized from a rule-based anomaly.
func (b *Builder) AddAnomaly(a AnomalyFinding, ds *records.Dataset, sourceName string) {
	b.findings = append(b.findings, b.normalizer.FromAnomaly(a, ds, sourceName))
}

// AddThreat appends a finding normalized from an external threat record.
// ds may be nil and rowIdx negative when no row context exists.
func (b *Builder) AddThreat(t Threat, ds *records.Dataset, rowIdx int) {
	b.findings = append(b.findings, b.normalizer.FromThreat(t, ds, rowIdx))
}

// Len returns the number of accumulated findings.
func (b *Builder) Len() int { return len(b.findings) }

// Finalize partitions findings into dated and undated, stable-sorts the dated
// group ascending by timestamp (insertion order breaks ties), and appends the
// undated group unchanged. An unparseable date is never coerced into a
// position; no deduplication is applied — two independent detections of the
// same physical event remain two findings.
func (b *Builder) Finalize() []Finding {
	var dated, undated []Finding

	for _, f := range b.findings {
		if f.Timestamp == nil {
			undated = append(undated, f)
			continue
		}
		if _, err := time.Parse(canonicalLayout, *f.Timestamp); err != nil {
			// Normalizer output should always be canonical; treat anything
			// else as undated rather than guessing a position.
			undated = append(undated, f)
			continue
		}
		dated = append(dated, f)
	}

	// Canonical "YYYY-MM-DD HH:MM:SS" strings order lexicographically, so a
	// string compare is a chronological compare.
	sort.SliceStable(dated, func(i, j int) bool {
		return *dated[i].Timestamp < *dated[j].Timestamp
	})

	out := make([]Finding, 0, len(b.findings))
	out = append(out, dated...)
	out = append(out, undated...)

	b.logger.Info("timeline finalized",
		zap.Int("dated", len(dated)),
		zap.Int("undated", len(undated)),
	)
	return out
}

// Rows renders findings as output rows under Columns order. Nil fields render
// as empty strings.
func Rows(findings []Finding) [][]string {
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{
			deref(f.Timestamp),
			deref(f.DeviceName),
			deref(f.Account),
			f.Event,
			f.Artifact,
			deref(f.EventID),
			f.Analyst,
			f.Comments,
			string(f.Level),
		})
	}
	return rows
}

// WriteCSV writes the timeline with the canonical header. An empty timeline
// still emits the header row.
func WriteCSV(w io.Writer, findings []Finding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range Rows(findings) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
