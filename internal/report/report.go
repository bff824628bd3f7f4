// Package report renders run results as machine-readable JSON and a
// human-readable text summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/analyzer"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/casefile"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/detect"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/ingest"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/iocs"
)

// Summary holds the headline counts of a run.
type Summary struct {
	SourcesAnalyzed int `json:"total_sources_analyzed"`
	TotalAnomalies  int `json:"total_anomalies"`
	TotalMatches    int `json:"total_ioc_matches"`
	TotalThreats    int `json:"total_threats"`
}

// Report is the full result of one analysis run.
type Report struct {
	ReportID    string              `json:"report_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Case        *casefile.Case      `json:"case,omitempty"`
	Ingestion   ingest.Stats        `json:"ingestion"`
	Summary     Summary             `json:"summary"`
	Anomalies   []detect.Anomaly    `json:"pattern_based_anomalies"`
	Matches     []iocs.Match        `json:"ioc_matches"`
	MatchStats  iocs.Summary        `json:"ioc_match_summary"`
	Analyses    []analyzer.Analysis `json:"ai_analysis_results"`
	Threats     []analyzer.Threat   `json:"all_threats"`
}

// Now is stubbed in tests for stable output.
var Now = time.Now

// Build assembles a report from the run's outputs.
func Build(cs *casefile.Case, stats ingest.Stats, anomalies []detect.Anomaly,
	matches []iocs.Match, analyses []analyzer.Analysis, threats []analyzer.Threat) *Report {
	return &Report{
		ReportID:    uuid.NewString(),
		GeneratedAt: Now(),
		Case:        cs,
		Ingestion:   stats,
		Summary: Summary{
			SourcesAnalyzed: len(analyses),
			TotalAnomalies:  len(anomalies),
			TotalMatches:    len(matches),
			TotalThreats:    len(threats),
		},
		Anomalies:  anomalies,
		Matches:    matches,
		MatchStats: iocs.Summarize(matches),
		Analyses:   analyses,
		Threats:    threats,
	}
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

const rule = "================================================================================"
const thinRule = "--------------------------------------------------------------------------------"

// WriteText renders the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString(rule + "\n")
	sb.WriteString("AI ORCHESTRATED FORENSIC ANALYSIS REPORT\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))

	if r.Case != nil {
		sb.WriteString("CASE\n" + thinRule + "\n")
		fmt.Fprintf(&sb, "Case ID: %s\n", r.Case.ID)
		fmt.Fprintf(&sb, "Case Type: %s\n", r.Case.Type)
		actor := r.Case.ThreatActorGroup
		if actor == "" {
			actor = "Not provided"
		}
		fmt.Fprintf(&sb, "Threat Actor Group: %s\n", actor)
		fmt.Fprintf(&sb, "Known IOCs: %d\n\n", len(r.Case.KnownIOCs))
	}

	sb.WriteString("SUMMARY\n" + thinRule + "\n")
	fmt.Fprintf(&sb, "Sources Analyzed: %d\n", r.Summary.SourcesAnalyzed)
	fmt.Fprintf(&sb, "Pattern-based Anomalies: %d\n", r.Summary.TotalAnomalies)
	fmt.Fprintf(&sb, "IOC Matches: %d\n", r.Summary.TotalMatches)
	fmt.Fprintf(&sb, "AI-Detected Threats: %d\n\n", r.Summary.TotalThreats)

	if len(r.Anomalies) > 0 {
		sb.WriteString("PATTERN-BASED ANOMALIES\n" + thinRule + "\n")
		for i, a := range r.Anomalies {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, strings.ToUpper(a.Severity), a.Description)
			fmt.Fprintf(&sb, "   Source: %s\n", a.Source)
			fmt.Fprintf(&sb, "   Column: %s\n", a.Column)
			fmt.Fprintf(&sb, "   Value: %s\n\n", a.Value)
		}
	}

	if len(r.Matches) > 0 {
		sb.WriteString("IOC MATCHES\n" + thinRule + "\n")
		for i, m := range r.Matches {
			fmt.Fprintf(&sb, "%d. [%s] %s (%s)\n", i+1, strings.ToUpper(string(m.MatchKind)), m.Indicator, m.Kind)
			fmt.Fprintf(&sb, "   Source: %s\n", m.Source)
			fmt.Fprintf(&sb, "   Column: %s\n", m.Column)
			fmt.Fprintf(&sb, "   Matched Value: %s\n\n", m.MatchedValue)
		}
	}

	if len(r.Threats) > 0 {
		sb.WriteString("AI-DETECTED THREATS\n" + thinRule + "\n")
		for i, t := range r.Threats {
			fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, strings.ToUpper(t.Severity), t.Type)
			fmt.Fprintf(&sb, "   Source: %s\n", t.Source)
			fmt.Fprintf(&sb, "   Description: %s\n", t.Description)
			if len(t.Indicators) > 0 {
				fmt.Fprintf(&sb, "   Indicators: %s\n", strings.Join(t.Indicators, ", "))
			}
			if t.Recommendation != "" {
				fmt.Fprintf(&sb, "   Recommendation: %s\n", t.Recommendation)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("DETAILED ANALYSIS\n" + thinRule + "\n")
	for _, a := range r.Analyses {
		fmt.Fprintf(&sb, "\nSource: %s\n", a.Source)
		fmt.Fprintf(&sb, "Confidence: %s\n", a.Confidence)
		fmt.Fprintf(&sb, "Summary: %s\n", a.Summary)
	}

	sb.WriteString("\n" + rule + "\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Save writes both renderings under dir, creating it if needed. Filenames
// carry the generation timestamp so runs never overwrite each other.
func (r *Report) Save(dir string) (jsonPath, textPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating report directory: %w", err)
	}
	stamp := r.GeneratedAt.Format("20060102_150405")
	jsonPath = filepath.Join(dir, fmt.Sprintf("forensic_report_%s.json", stamp))
	textPath = filepath.Join(dir, fmt.Sprintf("forensic_report_%s.txt", stamp))

	jf, err := os.Create(jsonPath)
	if err != nil {
		return "", "", err
	}
	defer jf.Close()
	if err := r.WriteJSON(jf); err != nil {
		return "", "", err
	}

	tf, err := os.Create(textPath)
	if err != nil {
		return "", "", err
	}
	defer tf.Close()
	if err := r.WriteText(tf); err != nil {
		return "", "", err
	}
	return jsonPath, textPath, nil
}
