// Package engine coordinates a patch compliance scan: scope resolution,
// collection, and report assembly. It never calls the AWS SDK directly.
package engine

import (
	"context"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// ScanOptions configures one compliance scan run.
type ScanOptions struct {
	// AccountIDs is the externally supplied account scope. Empty means
	// "scan every account known to the directory".
	AccountIDs []string

	// Regions is the region scope. Must be non-empty to produce any data.
	Regions []string

	// RoleName is the IAM role assumed in each target account.
	RoleName string

	// Workers bounds concurrent (account, region) units. Zero uses the
	// collector default.
	Workers int

	// IncludeCatalog controls whether the available-patch catalog is kept
	// on the report. The catalog can run to tens of thousands of rows per
	// region, so table consumers usually drop it.
	IncludeCatalog bool

	// OnProgress, when non-nil, receives unit completion ticks.
	OnProgress func(done, total int)
}

// ScanEngine runs patch compliance scans and assembles reports.
type ScanEngine interface {
	RunScan(ctx context.Context, opts ScanOptions) (*models.ScanReport, error)
}
