// Package timeline reconstructs a unified incident timeline from indicator
// matches, rule-based anomalies, and externally supplied threat records. It
// normalizes detections with inconsistent source schemas into Findings and
// orders them chronologically.
package timeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

// Level classifies a finding's assessed severity on the timeline.
type Level string

const (
	LevelSuspicious Level = "Suspicious"
	LevelMalicious  Level = "Malicious"
)

// canonicalLayout is the canonical timestamp form for timeline output.
const canonicalLayout = "2006-01-02 15:04:05"

// Finding is a normalized, timeline-ready record. Nil pointer fields mean
// the source row carried no such information; that is expected, not an error.
type Finding struct {
	Timestamp  *string `json:"timestamp"`
	DeviceName *string `json:"device_name"`
	Account    *string `json:"account"`
	Event      string  `json:"event_description"`
	Artifact   string  `json:"artifact_type"`
	EventID    *string `json:"event_id"`
	Analyst    string  `json:"analyst"`
	Comments   string  `json:"comments"`
	Level      Level   `json:"level"`
}

// Threat is an opaque assessment produced by an external analysis capability.
// Only the listed fields are interpreted here.
type Threat struct {
	Source         string   `json:"source"`
	Type           string   `json:"type"`
	Severity       string   `json:"severity"`
	Description    string   `json:"description"`
	Indicators     []string `json:"indicators,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// timestampPattern pairs an extraction regexp with the layout used to parse
// its capture. Digit-only patterns carry no layout and are parsed as epochs.
type timestampPattern struct {
	re     *regexp.Regexp
	layout string
}

var timestampPatterns = []timestampPattern{
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2})`), "2006-01-02 15:04:05"},
	{regexp.MustCompile(`(\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2})`), "01/02/2006 15:04:05"},
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2})`), "2006-01-02T15:04:05"},
	{regexp.MustCompile(`(\d{2}-\d{2}-\d{4}\s+\d{2}:\d{2}:\d{2})`), "02-01-2006 15:04:05"},
	{regexp.MustCompile(`(\d{13})`), ""},
	{regexp.MustCompile(`(\d{10})`), ""},
}

// Conventional column-name alias tables. First present, non-null alias wins.
var (
	timestampColumns = []string{
		"timestamp", "time", "date", "datetime", "created", "modified",
		"last_accessed", "last_modified", "event_time", "log_time",
	}
	eventIDColumns = []string{"event_id", "eventid", "event id", "id", "eventid_value"}
	accountColumns = []string{
		"account", "user", "username", "user_name", "account_name",
		"subject_user_name", "target_user_name", "logon_account",
	}
	deviceColumns = []string{
		"device", "computer", "hostname", "host_name", "system",
		"machine_name", "computer_name",
	}
)

// ExtractTimestamp finds an embedded timestamp in the value's text and
// renders it canonically. On a miss it tries each conventional timestamp
// column of the row once — a bounded pass, never recursive, so fallback
// columns cannot chase each other. Returns nil when nothing parses.
func ExtractTimestamp(value records.Value, row records.Row) *string {
	if ts := timestampFromText(value.Text()); ts != nil {
		return ts
	}
	if row == nil {
		return nil
	}
	for _, col := range timestampColumns {
		v, ok := row[col]
		if !ok || v.IsNull() {
			continue
		}
		if ts := timestampFromText(v.Text()); ts != nil {
			return ts
		}
	}
	return nil
}

// timestampFromText applies the pattern table in priority order; the first
// pattern matching anywhere in the string wins. Parse failures fall through
// to the next pattern.
func timestampFromText(text string) *string {
	if text == "" {
		return nil
	}
	for _, p := range timestampPatterns {
		loc := p.re.FindStringSubmatch(text)
		if loc == nil {
			continue
		}
		raw := loc[1]
		if p.layout == "" {
			if ts := parseEpoch(raw); ts != nil {
				return ts
			}
			continue
		}
		// Collapse repeated whitespace so "2024-03-15  10:22:05" parses.
		normalized := strings.Join(strings.Fields(raw), " ")
		t, err := time.Parse(p.layout, normalized)
		if err != nil {
			continue
		}
		s := t.Format(canonicalLayout)
		return &s
	}
	return nil
}

// parseEpoch treats 13 digits as milliseconds and 10 as seconds. Rendering is
// UTC so results do not depend on the host timezone.
func parseEpoch(digits string) *string {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	var t time.Time
	switch len(digits) {
	case 13:
		t = time.UnixMilli(n).UTC()
	case 10:
		t = time.Unix(n, 0).UTC()
	default:
		return nil
	}
	s := t.Format(canonicalLayout)
	return &s
}

// artifactRule maps a source-name fragment (optionally requiring a second
// fragment) to a human-meaningful artifact category.
type artifactRule struct {
	fragment string
	also     string
	columns  bool // also test the joined column names
	artifact string
}

var artifactRules = []artifactRule{
	{fragment: "amcache", columns: true, artifact: "Amcache"},
	{fragment: "prefetch", columns: true, artifact: "Prefetch"},
	{fragment: "shimcache", columns: true, artifact: "Shimcache"},
	{fragment: "sysmon", artifact: "Sysmon Event Log"},
	{fragment: "security", also: "log", artifact: "Security Event Log"},
	{fragment: "application", also: "log", artifact: "Application Event Log"},
	{fragment: "system", also: "log", artifact: "System Event Log"},
	{fragment: "event", also: "log", artifact: "Event Log"},
	{fragment: "process", artifact: "Process List"},
	{fragment: "network", artifact: "Network Connection"},
	{fragment: "connection", artifact: "Network Connection"},
	{fragment: "file", artifact: "File System"},
	{fragment: "registry", artifact: "Registry"},
}

// InferArtifact derives the artifact category from the source name and, for
// registry execution caches, the column names. Unrecognized sources pass
// through unchanged.
func InferArtifact(sourceName string, ds *records.Dataset) string {
	source := strings.ToLower(sourceName)
	var columns string
	if ds != nil {
		columns = strings.ToLower(strings.Join(ds.Columns, " "))
	}
	for _, rule := range artifactRules {
		haystack := source
		if rule.columns && columns != "" {
			haystack = source + " " + columns
		}
		if !strings.Contains(haystack, rule.fragment) {
			continue
		}
		if rule.also != "" && !strings.Contains(source, rule.also) {
			continue
		}
		return rule.artifact
	}
	return sourceName
}

// Normalizer converts raw detections into Findings.
type Normalizer struct {
	analyst string
}

// NewNormalizer returns a normalizer stamping findings with the analyst name.
func NewNormalizer(analyst string) *Normalizer {
	return &Normalizer{analyst: analyst}
}

// rowContext resolves the row-derived canonical fields. An out-of-range row
// index is a contract violation between detector and normalizer; it degrades
// to all-nil fields rather than aborting the pass.
func (n *Normalizer) rowContext(ds *records.Dataset, rowIdx int, direct records.Value) (ts, device, account, eventID *string) {
	if ds == nil {
		return nil, nil, nil, nil
	}
	row := ds.RowAt(rowIdx)
	if row == nil {
		return nil, nil, nil, nil
	}
	ts = ExtractTimestamp(direct, row)
	device = lookupText(row, deviceColumns)
	account = lookupText(row, accountColumns)
	eventID = lookupText(row, eventIDColumns)
	return ts, device, account, eventID
}

func lookupText(row records.Row, aliases []string) *string {
	v, ok := row.Lookup(aliases...)
	if !ok {
		return nil
	}
	s := v.Text()
	return &s
}

// MatchFinding normalizes an indicator match against its originating dataset.
type MatchFinding struct {
	Indicator    string
	Kind         string
	Column       string
	RowIndex     int
	MatchedValue string
}

// FromMatch builds a Finding from an indicator match.
func (n *Normalizer) FromMatch(m MatchFinding, ds *records.Dataset, sourceName string) Finding {
	ts, device, account, eventID := n.rowContext(ds, m.RowIndex, records.Null())
	return Finding{
		Timestamp:  ts,
		DeviceName: device,
		Account:    account,
		Event:      fmt.Sprintf("IOC Match: %s found in %s: %s", m.Indicator, m.Column, m.MatchedValue),
		Artifact:   InferArtifact(sourceName, ds),
		EventID:    eventID,
		Analyst:    n.analyst,
		Comments:   fmt.Sprintf("Matched IOC (%s) in %s", m.Kind, m.Column),
		Level:      LevelSuspicious,
	}
}

// AnomalyFinding normalizes a rule-based anomaly against its dataset.
type AnomalyFinding struct {
	RuleType    string
	Column      string
	RowIndex    int
	Description string
}

// FromAnomaly builds a Finding from a heuristic anomaly.
func (n *Normalizer) FromAnomaly(a AnomalyFinding, ds *records.Dataset, sourceName string) Finding {
	ts, device, account, eventID := n.rowContext(ds, a.RowIndex, records.Null())
	event := a.Description
	if event == "" {
		event = "Pattern-based anomaly detected"
	}
	return Finding{
		Timestamp:  ts,
		DeviceName: device,
		Account:    account,
		Event:      event,
		Artifact:   InferArtifact(sourceName, ds),
		EventID:    eventID,
		Analyst:    n.analyst,
		Comments:   fmt.Sprintf("Detected %s pattern in %s", a.RuleType, a.Column),
		Level:      LevelSuspicious,
	}
}

// FromThreat builds a Finding from an external threat record. Dataset and row
// index are optional context; pass ds=nil or rowIdx<0 when unavailable.
func (n *Normalizer) FromThreat(t Threat, ds *records.Dataset, rowIdx int) Finding {
	var ts, device, account, eventID *string
	if ds != nil && rowIdx >= 0 {
		ts, device, account, eventID = n.rowContext(ds, rowIdx, records.Null())
	}

	artifact := t.Source
	if ds != nil {
		artifact = InferArtifact(t.Source, ds)
	}

	event := t.Description
	if event == "" {
		event = t.Type
	}
	if event == "" {
		event = "Unknown threat"
	}

	comments := t.Recommendation
	if len(t.Indicators) > 0 {
		comments += " Indicators: " + strings.Join(t.Indicators, ", ")
	}

	level := LevelSuspicious
	switch strings.ToLower(t.Severity) {
	case "critical", "high":
		level = LevelMalicious
	}

	return Finding{
		Timestamp:  ts,
		DeviceName: device,
		Account:    account,
		Event:      event,
		Artifact:   artifact,
		EventID:    eventID,
		Analyst:    n.analyst,
		Comments:   comments,
		Level:      level,
	}
}
