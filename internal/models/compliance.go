package models

import "time"

// Classification represents the derived patch posture of a single instance.
type Classification string

const (
	ClassificationCompliant           Classification = "COMPLIANT"
	ClassificationNonCompliantMissing Classification = "NON_COMPLIANT_MISSING"
	ClassificationNonCompliantFailed  Classification = "NON_COMPLIANT_FAILED"
	ClassificationUnmanaged           Classification = "UNMANAGED"
)

// AgentStatus is the SSM agent reachability reported by the managed-instance
// registry.
type AgentStatus string

const (
	AgentOnline         AgentStatus = "Online"
	AgentConnectionLost AgentStatus = "ConnectionLost"
	AgentInactive       AgentStatus = "Inactive"
	AgentNotInstalled   AgentStatus = "Not Installed"
	AgentUnknown        AgentStatus = "Unknown"
)

// InstanceRecord is the reconciled compliance record for one EC2 instance.
// It is the atomic output unit of the patch compliance pipeline: every
// instance discovered by the inventory collector yields exactly one record.
type InstanceRecord struct {
	AccountID      string         `json:"account_id"`
	AccountName    string         `json:"account_name"`
	Region         string         `json:"region"`
	InstanceID     string         `json:"instance_id"`
	InstanceName   string         `json:"instance_name"`
	Platform       string         `json:"platform"`
	Classification Classification `json:"classification"`
	AgentStatus    AgentStatus    `json:"agent_status"`
	Installed      int32          `json:"installed_patches"`
	Missing        int32          `json:"missing_patches"`
	Failed         int32          `json:"failed_patches"`
	Unspecified    int32          `json:"unspecified_patches"`
	State          string         `json:"instance_state"`
	LaunchTime     time.Time      `json:"launch_time"`
	Managed        bool           `json:"managed"`
}

// PatchGroupSummary is the fleet-level compliance rollup for one patch group
// (a baseline-to-instance-group mapping). Groups with zero instances are
// filtered out at collection time.
type PatchGroupSummary struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Region       string `json:"region"`
	GroupName    string `json:"patch_group"`
	BaselineID   string `json:"baseline_id"`
	Instances    int32  `json:"instances"`
	Compliant    int32  `json:"compliant"`
	NonCompliant int32  `json:"non_compliant"`
	Unspecified  int32  `json:"unspecified"`
}

// CatalogPatch is a single patch definition available for the platform in a
// region, independent of which instances need it. The raw collection may
// contain the same patch ID more than once (one entry per unit that saw it);
// deduplication is a presentation-layer concern — see DistinctPatches.
type CatalogPatch struct {
	AccountID      string    `json:"account_id"`
	AccountName    string    `json:"account_name"`
	Region         string    `json:"region"`
	PatchID        string    `json:"patch_id"`
	Title          string    `json:"title"`
	Classification string    `json:"classification"`
	Severity       string    `json:"severity"`
	ReleaseDate    time.Time `json:"release_date,omitzero"`
	ContentURL     string    `json:"content_url,omitempty"`
}

// DistinctPatches collapses a raw catalog-patch collection to one record per
// unique patch ID. The first occurrence of each ID wins; relative order of
// first occurrences is preserved.
func DistinctPatches(patches []CatalogPatch) []CatalogPatch {
	seen := make(map[string]struct{}, len(patches))
	var distinct []CatalogPatch
	for _, p := range patches {
		if _, ok := seen[p.PatchID]; ok {
			continue
		}
		seen[p.PatchID] = struct{}{}
		distinct = append(distinct, p)
	}
	return distinct
}
