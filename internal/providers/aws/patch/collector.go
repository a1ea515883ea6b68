package patch

import (
	"context"

	"github.com/fleetops-tools/patchscan/internal/models"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
)

// UnitScope identifies one (account, region) collection unit.
type UnitScope struct {
	// AccountID is the target AWS account.
	AccountID string

	// AccountName is the display name used in output rows and warnings.
	// Falls back to AccountID when no directory entry exists.
	AccountName string

	// Region is the AWS region to collect from.
	Region string
}

// label returns the "account/region" prefix used in warning strings.
func (s UnitScope) label() string {
	return s.AccountName + "/" + s.Region
}

// UnitResult is everything one (account, region) unit produced. A unit never
// fails outright: sub-fetch failures degrade to empty data plus a warning, so
// Warnings may be non-empty alongside partial Instances/Groups/Patches.
type UnitResult struct {
	Instances []models.InstanceRecord
	Groups    []models.PatchGroupSummary
	Patches   []models.CatalogPatch
	Warnings  []string
}

// CollectOptions configures a multi-account compliance scan.
type CollectOptions struct {
	// AccountIDs and Regions define the Cartesian product of units to scan.
	// Empty lists mean "nothing to do" and yield an empty result.
	AccountIDs []string
	Regions    []string

	// RoleName is the IAM role assumed in each target account.
	RoleName string

	// AccountNames maps account IDs to display names. Missing entries fall
	// back to the raw ID.
	AccountNames map[string]string

	// Workers bounds concurrent in-flight units. Defaults to
	// defaultMaxWorkers when <= 0. The bound exists to stay under
	// per-account API rate limits, not for CPU parallelism.
	Workers int

	// OnProgress, when non-nil, is invoked after each unit completes with
	// the number of finished units and the total. Calls are serialized.
	OnProgress func(done, total int)
}

// PatchCollector runs the patch compliance pipeline: EC2 inventory, SSM
// managed-instance registry, and per-instance patch state are collected per
// (account, region) unit, reconciled into one compliance record per
// discovered instance, and aggregated across all units.
//
// All implementations must use the AWS SDK v2 only.
type PatchCollector interface {
	// CollectUnit runs the full pipeline for a single (account, region)
	// unit. It never returns an error: failures inside the unit degrade to
	// partial data and warning strings on the result.
	CollectUnit(ctx context.Context, provider common.CredentialProvider, scope UnitScope, roleName string) *UnitResult

	// CollectAll fans CollectUnit out across accounts × regions under a
	// bounded worker pool, merging each unit's output as it completes.
	// Completion order is not deterministic and carries no meaning. The
	// returned error is non-nil only when ctx is cancelled.
	CollectAll(ctx context.Context, provider common.CredentialProvider, opts CollectOptions) (*UnitResult, error)
}
