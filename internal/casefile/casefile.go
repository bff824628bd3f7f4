// Package casefile models the investigation a run is scoped to: the case
// type, an optional threat actor attribution, and any analyst-supplied
// indicators.
package casefile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CaseType categorizes an investigation.
type CaseType string

const (
	TypeRansomware CaseType = "Ransomware"
	TypeBEC        CaseType = "BEC"
	TypeIntrusion  CaseType = "Intrusion"
	TypeOther      CaseType = "Other"
)

// CaseTypes lists the accepted case types in display order.
var CaseTypes = []CaseType{TypeRansomware, TypeBEC, TypeIntrusion, TypeOther}

// ParseCaseType accepts a case type name case-insensitively.
func ParseCaseType(s string) (CaseType, error) {
	for _, ct := range CaseTypes {
		if strings.EqualFold(string(ct), strings.TrimSpace(s)) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown case type: %q", s)
}

// Case describes one investigation.
type Case struct {
	ID               string   `json:"id" yaml:"id"`
	Type             CaseType `json:"case_type" yaml:"case_type"`
	ThreatActorGroup string   `json:"threat_actor_group,omitempty" yaml:"threat_actor_group"`
	KnownIOCs        []string `json:"known_iocs" yaml:"known_iocs"`
	Analyst          string   `json:"analyst,omitempty" yaml:"analyst"`
}

// New returns a case with a fresh identifier.
func New(caseType CaseType, actor string, iocs []string, analyst string) *Case {
	return &Case{
		ID:               uuid.NewString(),
		Type:             caseType,
		ThreatActorGroup: strings.TrimSpace(actor),
		KnownIOCs:        iocs,
		Analyst:          strings.TrimSpace(analyst),
	}
}

// Validate checks the case is well-formed enough to drive a run.
func (c *Case) Validate() error {
	if c == nil {
		return fmt.Errorf("nil case")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := ParseCaseType(string(c.Type)); err != nil {
		return err
	}
	return nil
}

// ParseIOCList splits analyst-pasted indicator text. Lines are split first;
// within each line the first delimiter found among comma, semicolon, and pipe
// wins. Blank entries are dropped. Order is preserved and duplicates are
// kept; downstream combination with retrieved intelligence deduplicates.
func ParseIOCList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sep := ""
		for _, d := range []string{",", ";", "|"} {
			if strings.Contains(line, d) {
				sep = d
				break
			}
		}
		if sep == "" {
			out = append(out, line)
			continue
		}
		for _, part := range strings.Split(line, sep) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
