package timeline

import (
	"strings"
	"testing"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
)

func TestTimestampFromText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // "" means nil
	}{
		{"embedded iso-like", "Event occurred 2024-03-15 10:22:05 on host", "2024-03-15 10:22:05"},
		{"us slashes", "logged 03/15/2024 10:22:05", "2024-03-15 10:22:05"},
		{"iso T", "2024-03-15T10:22:05.123Z", "2024-03-15 10:22:05"},
		{"day first", "15-03-2024 10:22:05", "2024-03-15 10:22:05"},
		{"epoch seconds", "1700000000", "2023-11-14 22:13:20"},
		{"epoch millis", "ts=1700000000000;", "2023-11-14 22:13:20"},
		{"no pattern", "nothing resembling a date", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timestampFromText(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Errorf("timestampFromText(%q) = %q, want nil", tt.in, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("timestampFromText(%q) = nil, want %q", tt.in, tt.want)
			}
			if *got != tt.want {
				t.Errorf("timestampFromText(%q) = %q, want %q", tt.in, *got, tt.want)
			}
		})
	}
}

func TestExtractTimestamp_FallbackColumns(t *testing.T) {
	row := records.Row{
		"message":    records.Text("no date here"),
		"event_time": records.Text("2024-01-02 03:04:05"),
	}

	got := ExtractTimestamp(records.Text("no date here"), row)
	if got == nil || *got != "2024-01-02 03:04:05" {
		t.Errorf("fallback column should resolve, got %v", got)
	}
}

func TestExtractTimestamp_DirectValueWins(t *testing.T) {
	row := records.Row{
		"timestamp": records.Text("2020-01-01 00:00:00"),
	}

	got := ExtractTimestamp(records.Text("seen 2024-06-01 12:00:00"), row)
	if got == nil || *got != "2024-06-01 12:00:00" {
		t.Errorf("direct value should win over fallback columns, got %v", got)
	}
}

func TestExtractTimestamp_Unresolved(t *testing.T) {
	row := records.Row{"note": records.Text("plain text")}
	if got := ExtractTimestamp(records.Null(), row); got != nil {
		t.Errorf("no pattern and no fallback column should yield nil, got %q", *got)
	}
}

func TestInferArtifact(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"amcache_export", "Amcache"},
		{"prefetch_parsed", "Prefetch"},
		{"sysmon_operational", "Sysmon Event Log"},
		{"security_event_log", "Security Event Log"},
		{"application_log", "Application Event Log"},
		{"system_log_export", "System Event Log"},
		{"windows_event_log", "Event Log"},
		{"process_list", "Process List"},
		{"network_connections", "Network Connection"},
		{"file_listing", "File System"},
		{"registry_hive", "Registry"},
		{"custom_tool_output", "custom_tool_output"},
	}

	for _, tt := range tests {
		if got := InferArtifact(tt.source, nil); got != tt.want {
			t.Errorf("InferArtifact(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestInferArtifact_FromColumns(t *testing.T) {
	ds := records.NewDataset("parsed_export", []string{"shimcache_entry", "path"})
	if got := InferArtifact("parsed_export", ds); got != "Shimcache" {
		t.Errorf("column names should inform artifact inference, got %q", got)
	}
}

func eventLogDataset() *records.Dataset {
	ds := records.NewDataset("security_event_log", []string{
		"event_time", "computer_name", "subject_user_name", "event_id", "message",
	})
	ds.Append(records.Row{
		"event_time":        records.Text("2024-03-15 10:22:05"),
		"computer_name":     records.Text("WS-ALICE"),
		"subject_user_name": records.Text("CORP\\alice"),
		"event_id":          records.Number(4624),
		"message":           records.Text("An account was successfully logged on"),
	})
	return ds
}

func TestFromMatch(t *testing.T) {
	n := NewNormalizer("jdoe")
	ds := eventLogDataset()

	f := n.FromMatch(MatchFinding{
		Indicator:    "corp\\alice",
		Kind:         "unknown",
		Column:       "subject_user_name",
		RowIndex:     0,
		MatchedValue: "corp\\alice",
	}, ds, "security_event_log")

	if f.Timestamp == nil || *f.Timestamp != "2024-03-15 10:22:05" {
		t.Errorf("timestamp = %v", f.Timestamp)
	}
	if f.DeviceName == nil || *f.DeviceName != "WS-ALICE" {
		t.Errorf("device = %v", f.DeviceName)
	}
	if f.Account == nil || *f.Account != "CORP\\alice" {
		t.Errorf("account = %v", f.Account)
	}
	if f.EventID == nil || *f.EventID != "4624" {
		t.Errorf("event id = %v", f.EventID)
	}
	if f.Artifact != "Security Event Log" {
		t.Errorf("artifact = %q", f.Artifact)
	}
	if f.Level != LevelSuspicious {
		t.Errorf("level = %q, want Suspicious", f.Level)
	}
	if f.Analyst != "jdoe" {
		t.Errorf("analyst = %q", f.Analyst)
	}
	if !strings.Contains(f.Event, "IOC Match") {
		t.Errorf("event description = %q", f.Event)
	}
}

func TestFromAnomaly_OutOfRangeRow(t *testing.T) {
	n := NewNormalizer("jdoe")
	ds := eventLogDataset()

	f := n.FromAnomaly(AnomalyFinding{
		RuleType:    "suspicious_keyword",
		Column:      "message",
		RowIndex:    99,
		Description: "Found suspicious keyword 'backdoor' in message",
	}, ds, "security_event_log")

	// Contract violation degrades to nil row-derived fields, not a panic.
	if f.Timestamp != nil || f.DeviceName != nil || f.Account != nil || f.EventID != nil {
		t.Error("out-of-range row index should yield nil row-derived fields")
	}
	if f.Event == "" || f.Level != LevelSuspicious {
		t.Errorf("finding should still be produced: %+v", f)
	}
}

func TestFromThreat_SeverityMapping(t *testing.T) {
	n := NewNormalizer("jdoe")

	tests := []struct {
		severity string
		want     Level
	}{
		{"critical", LevelMalicious},
		{"HIGH", LevelMalicious},
		{"medium", LevelSuspicious},
		{"low", LevelSuspicious},
		{"", LevelSuspicious},
	}

	for _, tt := range tests {
		f := n.FromThreat(Threat{
			Source:      "process_list",
			Type:        "malware",
			Severity:    tt.severity,
			Description: "cobalt strike beacon",
		}, nil, -1)
		if f.Level != tt.want {
			t.Errorf("severity %q mapped to %q, want %q", tt.severity, f.Level, tt.want)
		}
	}
}

func TestFromThreat_IndicatorsInComments(t *testing.T) {
	n := NewNormalizer("jdoe")
	f := n.FromThreat(Threat{
		Source:         "network_connections",
		Type:           "network_anomaly",
		Severity:       "medium",
		Description:    "beaconing to known C2",
		Indicators:     []string{"10.1.2.3", "evil.example.com"},
		Recommendation: "Block at the perimeter.",
	}, nil, -1)

	if !strings.Contains(f.Comments, "Block at the perimeter.") {
		t.Errorf("comments should carry the recommendation: %q", f.Comments)
	}
	if !strings.Contains(f.Comments, "10.1.2.3, evil.example.com") {
		t.Errorf("comments should list indicators: %q", f.Comments)
	}
	if f.Artifact != "network_connections" {
		t.Errorf("artifact without dataset context should be the raw source, got %q", f.Artifact)
	}
}
