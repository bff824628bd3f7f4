// Package analyzer runs model-assisted threat analysis over loaded datasets.
// A completion backend is asked to flag threats in a summarized view of each
// source; when no backend is configured or the model's answer cannot be
// parsed, a small heuristic pass runs instead so analysis always produces a
// result.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/intel"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// Threat is one model- or heuristic-identified finding in a data source.
type Threat struct {
	Source         string   `json:"source,omitempty"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	Indicators     []string `json:"indicators"`
	Recommendation string   `json:"recommendation"`
}

// Analysis is the result for one data source.
type Analysis struct {
	Source     string   `json:"source"`
	Threats    []Threat `json:"threats"`
	Summary    string   `json:"summary"`
	Confidence string   `json:"confidence"`
}

// CaseContext focuses the analysis on a specific investigation.
type CaseContext struct {
	CaseType    string
	ThreatActor string
	IOCs        []string
	TTPs        []intel.TTP
}

// Analyzer evaluates datasets with an optional completion backend.
type Analyzer struct {
	backend    Backend
	sampleRows int
	logger     *zap.Logger
	results    []Analysis
}

// New returns an analyzer. backend may be nil for heuristics-only mode.
func New(backend Backend, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	rows := cfg.SampleRows
	if rows <= 0 {
		rows = 20
	}
	return &Analyzer{backend: backend, sampleRows: rows, logger: logger}
}

// AnalyzeDataset evaluates one dataset and records the result.
func (a *Analyzer) AnalyzeDataset(ctx context.Context, ds *records.Dataset, caseCtx CaseContext) Analysis {
	summary := datasetSummary(ds)
	sample := sampleRows(ds, a.sampleRows)

	var analysis Analysis
	if a.backend == nil {
		analysis = ruleBasedAnalysis(sample)
	} else {
		prompt := buildPrompt(summary, sample, ds.Name, caseCtx)
		text, err := a.backend.Complete(ctx, prompt)
		if err != nil {
			a.logger.Warn("model analysis failed, using heuristics",
				zap.String("source", ds.Name),
				zap.Error(err),
			)
			analysis = ruleBasedAnalysis(sample)
		} else if parsed, perr := parseAnalysis(text); perr != nil {
			a.logger.Warn("unparseable model analysis, using heuristics",
				zap.String("source", ds.Name),
				zap.Error(perr),
			)
			analysis = ruleBasedAnalysis(sample)
		} else {
			analysis = parsed
		}
	}

	analysis.Source = ds.Name
	a.results = append(a.results, analysis)
	a.logger.Info("analyzed source",
		zap.String("source", ds.Name),
		zap.Int("threats", len(analysis.Threats)),
		zap.String("confidence", analysis.Confidence),
	)
	return analysis
}

// AnalyzeAll evaluates every dataset in store iteration order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, store *records.Store, caseCtx CaseContext) []Analysis {
	for _, name := range store.Names() {
		ds, ok := store.Get(name)
		if !ok {
			continue
		}
		a.AnalyzeDataset(ctx, ds, caseCtx)
	}
	return a.results
}

// Results returns every analysis recorded so far.
func (a *Analyzer) Results() []Analysis { return a.results }

// AllThreats flattens threats across analyses, stamping each with its source.
func (a *Analyzer) AllThreats() []Threat {
	var all []Threat
	for _, analysis := range a.results {
		for _, threat := range analysis.Threats {
			threat.Source = analysis.Source
			all = append(all, threat)
		}
	}
	return all
}

// parseAnalysis extracts the first JSON object from model output.
func parseAnalysis(text string) (Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Analysis{}, fmt.Errorf("no JSON object in model response")
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("parsing analysis JSON: %w", err)
	}
	return analysis, nil
}

// ruleBasedAnalysis is the heuristic fallback: flag temp-directory usage.
func ruleBasedAnalysis(sample string) Analysis {
	var threats []Threat
	lowered := strings.ToLower(sample)
	if strings.Contains(lowered, "temp") || strings.Contains(lowered, "tmp") {
		threats = append(threats, Threat{
			Type:           "file_anomaly",
			Severity:       "medium",
			Description:    "Files in temporary directories detected",
			Indicators:     []string{"temp directory usage"},
			Recommendation: "Review files in temporary directories",
		})
	}
	return Analysis{
		Threats:    threats,
		Summary:    "Rule-based analysis completed. Consider using a model backend for deeper analysis.",
		Confidence: "low",
	}
}

func datasetSummary(ds *records.Dataset) string {
	return fmt.Sprintf("Rows: %d\nColumns: %d\nColumn names: %s",
		ds.Len(), len(ds.Columns), strings.Join(ds.Columns, ", "))
}

// sampleRows renders the first n rows as a compact table, capped at ten
// columns to keep prompts bounded.
func sampleRows(ds *records.Dataset, n int) string {
	cols := ds.Columns
	if len(cols) > 10 {
		cols = cols[:10]
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	for i := 0; i < ds.Len() && i < n; i++ {
		row := ds.RowAt(i)
		cells := make([]string, len(cols))
		for j, col := range cols {
			cells[j] = row[col].Text()
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(cells, " | "))
	}
	return sb.String()
}

func buildPrompt(summary, sample, source string, caseCtx CaseContext) string {
	var ctx []string
	caseType := caseCtx.CaseType
	if caseType == "" {
		caseType = "general"
	} else {
		ctx = append(ctx, "Case Type: "+caseCtx.CaseType)
	}
	if caseCtx.ThreatActor != "" {
		ctx = append(ctx, "Threat Actor Group: "+caseCtx.ThreatActor)
	}
	if len(caseCtx.IOCs) > 0 {
		shown := caseCtx.IOCs
		if len(shown) > 20 {
			shown = shown[:20]
		}
		ctx = append(ctx, "Known IOCs to search for: "+strings.Join(shown, ", "))
		if extra := len(caseCtx.IOCs) - 20; extra > 0 {
			ctx = append(ctx, fmt.Sprintf("... and %d more IOCs", extra))
		}
	}
	if len(caseCtx.TTPs) > 0 {
		ctx = append(ctx, fmt.Sprintf("Known TTPs: %d TTP(s) associated with threat actor", len(caseCtx.TTPs)))
		for i, ttp := range caseCtx.TTPs {
			if i == 5 {
				break
			}
			ctx = append(ctx, fmt.Sprintf("  - %s: %s", ttp.Technique, ttp.Description))
		}
	}
	contextStr := "No specific case context provided."
	if len(ctx) > 0 {
		contextStr = strings.Join(ctx, "\n")
	}

	return fmt.Sprintf(`You are a cybersecurity forensic analyst. Analyze the following forensic data and identify any suspicious, malicious, or anomalous activities.

Case Context:
%s

Data Source: %s

Data Summary:
%s

Sample Data:
%s

Please analyze this data with focus on:
1. Indicators matching the provided IOCs
2. Activities consistent with the case type (%s)
3. TTPs associated with the threat actor group
4. Any suspicious files, processes, or network activities
5. Potential malware indicators
6. Unusual patterns or anomalies
7. Security threats or compromises

Provide your analysis in JSON format with the following structure:
{
    "threats": [
        {
            "type": "malware|suspicious_process|network_anomaly|file_anomaly|other",
            "severity": "critical|high|medium|low",
            "description": "Detailed description",
            "indicators": ["indicator1", "indicator2"],
            "recommendation": "What should be done"
        }
    ],
    "summary": "Overall assessment",
    "confidence": "high|medium|low"
}`, contextStr, source, summary, sample, caseType)
}
