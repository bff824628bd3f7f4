// Package intel retrieves threat-actor intelligence (TTPs and IOCs) from an
// external generative-language capability. Results are consumed downstream as
// opaque structured records; this package performs no threat reasoning of its
// own.
package intel

import "context"

// TTP describes one tactic/technique/procedure attributed to an actor.
type TTP struct {
	Tactic      string `json:"tactic"`
	Technique   string `json:"technique"`
	Description string `json:"description"`
}

// IOCSet groups indicators by category, preserving the provider's lists.
type IOCSet struct {
	IPAddresses    []string `json:"ip_addresses"`
	Domains        []string `json:"domains"`
	FileHashes     []string `json:"file_hashes"`
	EmailAddresses []string `json:"email_addresses"`
	Executables    []string `json:"executables"`
	RegistryKeys   []string `json:"registry_keys"`
	UserAgents     []string `json:"user_agents"`
	Other          []string `json:"other"`
}

// Report is the structured intelligence for one threat actor.
type Report struct {
	ThreatActor string   `json:"threat_actor"`
	TTPs        []TTP    `json:"ttps"`
	IOCs        IOCSet   `json:"iocs"`
	Sources     []string `json:"sources"`
}

// AllIOCs flattens every category list in a fixed order.
func (r *Report) AllIOCs() []string {
	if r == nil {
		return nil
	}
	var all []string
	for _, group := range [][]string{
		r.IOCs.IPAddresses, r.IOCs.Domains, r.IOCs.FileHashes,
		r.IOCs.EmailAddresses, r.IOCs.Executables, r.IOCs.RegistryKeys,
		r.IOCs.UserAgents, r.IOCs.Other,
	} {
		all = append(all, group...)
	}
	return all
}

// Provider is the interface for threat-actor intelligence sources.
type Provider interface {
	Name() string
	ActorIntelligence(ctx context.Context, actor string) (*Report, error)
}
