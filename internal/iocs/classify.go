// Package iocs provides indicator-of-compromise classification and the
// dataset matcher that correlates caller-supplied indicators against ingested
// forensic records.
package iocs

import (
	"regexp"
	"strings"
)

// Kind is the inferred indicator type.
type Kind string

const (
	KindIPAddress  Kind = "ip_address"
	KindHash       Kind = "hash"
	KindDomain     Kind = "domain"
	KindEmail      Kind = "email"
	KindExecutable Kind = "executable"
	KindUnknown    Kind = "unknown"
)

var (
	ipPattern     = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	hashPattern   = regexp.MustCompile(`^[a-f0-9]{32}$|^[a-f0-9]{40}$|^[a-f0-9]{64}$`)
	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

var executableSuffixes = []string{".exe", ".dll", ".bat", ".cmd", ".ps1", ".vbs", ".scr"}

// Classify infers the indicator kind. The first matching rule wins, in
// priority order: IPv4, hash (MD5/SHA1/SHA256 length), domain, email,
// executable suffix, unknown. Classification is total: every string maps to
// exactly one kind.
func Classify(value string) Kind {
	switch {
	case ipPattern.MatchString(value):
		return KindIPAddress
	case hashPattern.MatchString(strings.ToLower(value)):
		return KindHash
	// Executable names are domain-shaped ("payload.exe" parses as a label
	// plus a TLD), so the domain rule defers on known executable suffixes.
	case domainPattern.MatchString(value) && !hasExecutableSuffix(value):
		return KindDomain
	case emailPattern.MatchString(value):
		return KindEmail
	case hasExecutableSuffix(value):
		return KindExecutable
	default:
		return KindUnknown
	}
}

func hasExecutableSuffix(value string) bool {
	for _, suffix := range executableSuffixes {
		if strings.HasSuffix(value, suffix) {
			return true
		}
	}
	return false
}

// Combine merges user-supplied indicators with intelligence-derived ones,
// dropping blanks and collapsing duplicates under case-fold+trim while
// preserving the first-seen order and original spelling.
func Combine(known, osint []string) []string {
	seen := make(map[string]struct{}, len(known)+len(osint))
	var unique []string
	for _, ioc := range append(append([]string{}, known...), osint...) {
		key := strings.ToLower(strings.TrimSpace(ioc))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, ioc)
	}
	return unique
}
