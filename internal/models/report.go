package models

import "time"

// ScanSummary aggregates counts across all reconciled instance records.
type ScanSummary struct {
	TotalInstances      int   `json:"total_instances"`
	Compliant           int   `json:"compliant"`
	NonCompliantMissing int   `json:"non_compliant_missing"`
	NonCompliantFailed  int   `json:"non_compliant_failed"`
	Unmanaged           int   `json:"unmanaged"`
	TotalMissingPatches int64 `json:"total_missing_patches"`
	TotalFailedPatches  int64 `json:"total_failed_patches"`
	UnitsScanned        int   `json:"units_scanned"`
	WarningCount        int   `json:"warning_count"`
}

// ScanReport is the complete output of one patch compliance scan across the
// selected accounts × regions. Warnings hold per-unit failure strings; a
// scan with failures still carries all data the succeeding units produced.
type ScanReport struct {
	ReportID    string              `json:"report_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	RoleName    string              `json:"role_name"`
	AccountIDs  []string            `json:"account_ids"`
	Regions     []string            `json:"regions"`
	Summary     ScanSummary         `json:"summary"`
	Instances   []InstanceRecord    `json:"instances"`
	Groups      []PatchGroupSummary `json:"patch_groups"`
	Patches     []CatalogPatch      `json:"catalog_patches,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}
