package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetops-tools/patchscan/internal/accounts"
	"github.com/fleetops-tools/patchscan/internal/models"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/patch"
)

// DefaultScanEngine is the production implementation of ScanEngine.
// It wires the credential provider, account directory, and patch collector
// together and assembles the final ScanReport.
type DefaultScanEngine struct {
	provider  common.CredentialProvider
	directory accounts.Directory
	collector patch.PatchCollector
}

// NewDefaultScanEngine constructs a DefaultScanEngine wired to the supplied
// provider, account directory, and collector.
func NewDefaultScanEngine(
	provider common.CredentialProvider,
	directory accounts.Directory,
	collector patch.PatchCollector,
) *DefaultScanEngine {
	return &DefaultScanEngine{
		provider:  provider,
		directory: directory,
		collector: collector,
	}
}

// RunScan implements ScanEngine. An empty account scope expands to every
// account in the directory; an empty expanded scope or empty region list is
// "nothing to do" and yields an empty report rather than an error.
func (e *DefaultScanEngine) RunScan(ctx context.Context, opts ScanOptions) (*models.ScanReport, error) {
	if opts.RoleName == "" {
		return nil, fmt.Errorf("role name is required")
	}

	accountIDs := opts.AccountIDs
	if len(accountIDs) == 0 {
		for _, a := range e.directory.Accounts() {
			accountIDs = append(accountIDs, a.ID)
		}
	}

	names := make(map[string]string, len(accountIDs))
	for _, id := range accountIDs {
		names[id] = e.directory.NameFor(id)
	}

	result, err := e.collector.CollectAll(ctx, e.provider, patch.CollectOptions{
		AccountIDs:   accountIDs,
		Regions:      opts.Regions,
		RoleName:     opts.RoleName,
		AccountNames: names,
		Workers:      opts.Workers,
		OnProgress:   opts.OnProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("collect compliance data: %w", err)
	}

	patches := result.Patches
	if !opts.IncludeCatalog {
		patches = nil
	}

	report := &models.ScanReport{
		ReportID:    fmt.Sprintf("patch-%d", time.Now().UnixNano()),
		GeneratedAt: time.Now().UTC(),
		RoleName:    opts.RoleName,
		AccountIDs:  accountIDs,
		Regions:     opts.Regions,
		Summary:     computeSummary(result, len(accountIDs)*len(opts.Regions)),
		Instances:   result.Instances,
		Groups:      result.Groups,
		Patches:     patches,
		Warnings:    result.Warnings,
	}
	return report, nil
}
