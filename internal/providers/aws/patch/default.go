package patch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fleetops-tools/patchscan/internal/models"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
)

// defaultMaxWorkers bounds concurrent (account, region) units. The bound
// keeps the scan under per-account API rate limits; the work is I/O-bound,
// so CPU count is irrelevant.
const defaultMaxWorkers = 10

// DefaultPatchCollector is the production implementation of PatchCollector.
// It uses AWS SDK v2 to collect compliance data unit by unit.
//
// Inject a custom patchClientFactory via NewDefaultPatchCollectorWithFactory
// to replace real SDK clients with mocks in unit tests.
type DefaultPatchCollector struct {
	factory patchClientFactory
	logger  *slog.Logger
}

// NewDefaultPatchCollector returns a collector backed by the real AWS SDK.
func NewDefaultPatchCollector(logger *slog.Logger) *DefaultPatchCollector {
	return newCollector(newDefaultPatchClients, logger)
}

// NewDefaultPatchCollectorWithFactory returns a collector that uses f to
// create its service clients. Pass a mock factory in tests.
func NewDefaultPatchCollectorWithFactory(f patchClientFactory, logger *slog.Logger) *DefaultPatchCollector {
	return newCollector(f, logger)
}

func newCollector(f patchClientFactory, logger *slog.Logger) *DefaultPatchCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultPatchCollector{factory: f, logger: logger}
}

// ---------------------------------------------------------------------------
// Per-unit pipeline
// ---------------------------------------------------------------------------

// CollectUnit runs the four-stage pipeline for one (account, region) unit:
//
//  1. EC2 inventory (ground truth instance set)
//  2. SSM managed-instance registry (managed subset + agent health)
//  3. patch states (batched, scoped to inventory ∩ registry) plus
//     patch-group summaries and the available-patch catalog
//  4. reconciliation into one compliance record per inventory instance
//
// Stages 1–2 are independent reads but each sub-fetch failure must degrade
// independently, so they run sequentially; stage 3 genuinely depends on
// stage 2's registry membership. Failures never escape: each sub-fetch
// degrades to empty data plus a warning on the result.
func (d *DefaultPatchCollector) CollectUnit(
	ctx context.Context,
	provider common.CredentialProvider,
	scope UnitScope,
	roleName string,
) *UnitResult {
	result := &UnitResult{}

	cfg, err := provider.Assume(ctx, scope.AccountID, roleName)
	if err != nil {
		// Unit-fatal: nothing in this unit can proceed without credentials.
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: auth failed: %v", scope.label(), err))
		return result
	}

	clients := d.factory(provider.ConfigForRegion(cfg, scope.Region))

	inventory, err := collectInventory(ctx, clients.EC2)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: EC2 inventory: %v", scope.label(), err))
		inventory = map[string]inventoryInstance{}
	}

	registry, err := collectRegistry(ctx, clients.SSM)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: SSM registry: %v", scope.label(), err))
		registry = map[string]models.AgentStatus{}
	}

	// Patch states only for instances that both exist and are registered.
	managedIDs := make([]string, 0, len(registry))
	for id := range registry {
		if _, ok := inventory[id]; ok {
			managedIDs = append(managedIDs, id)
		}
	}
	sort.Strings(managedIDs) // deterministic batch composition

	states, err := collectPatchStates(ctx, clients.SSM, managedIDs)
	if err != nil {
		// Partial states are kept; reconcile treats missing entries
		// conservatively.
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: patch states: %v", scope.label(), err))
	}

	result.Groups, err = collectPatchGroups(ctx, clients.SSM, scope)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: patch groups: %v", scope.label(), err))
	}

	result.Patches, err = collectCatalog(ctx, clients.SSM, scope)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: patch catalog: %v", scope.label(), err))
	}

	result.Instances = reconcile(scope, inventory, registry, states)
	return result
}

// ---------------------------------------------------------------------------
// Parallel aggregator
// ---------------------------------------------------------------------------

// CollectAll fans CollectUnit out across the Cartesian product of
// opts.AccountIDs × opts.Regions under a bounded worker pool.
//
// Units are embarrassingly parallel; results are merged under a mutex in
// completion order, which carries no meaning. A unit never fails the
// aggregation: sub-fetch errors arrive as warning strings on its result, and
// a panicking unit is recovered at the goroutine boundary and converted to a
// warning tagged with its account/region. The only error returned is
// ctx.Err() after cancellation.
func (d *DefaultPatchCollector) CollectAll(
	ctx context.Context,
	provider common.CredentialProvider,
	opts CollectOptions,
) (*UnitResult, error) {
	total := len(opts.AccountIDs) * len(opts.Regions)
	aggregate := &UnitResult{}
	if total == 0 {
		return aggregate, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}

	sem := make(chan struct{}, workers)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)

UNITS:
	for _, accountID := range opts.AccountIDs {
		name := accountID
		if n, ok := opts.AccountNames[accountID]; ok && n != "" {
			name = n
		}
		for _, region := range opts.Regions {
			scope := UnitScope{AccountID: accountID, AccountName: name, Region: region}

			select {
			case sem <- struct{}{}: // acquire slot; blocks at capacity
			case <-gctx.Done():
				break UNITS // user-initiated abort
			}

			g.Go(func() error {
				defer func() { <-sem }()

				result := d.runUnit(gctx, provider, scope, opts.RoleName)

				mu.Lock()
				aggregate.Instances = append(aggregate.Instances, result.Instances...)
				aggregate.Groups = append(aggregate.Groups, result.Groups...)
				aggregate.Patches = append(aggregate.Patches, result.Patches...)
				aggregate.Warnings = append(aggregate.Warnings, result.Warnings...)
				done++
				completed := done
				if opts.OnProgress != nil {
					opts.OnProgress(completed, total)
				}
				mu.Unlock()

				d.logger.Debug("unit complete",
					"account", scope.AccountID,
					"region", scope.Region,
					"instances", len(result.Instances),
					"warnings", len(result.Warnings),
					"progress", fmt.Sprintf("%d/%d", completed, total),
				)
				return nil
			})
		}
	}

	// Unit goroutines never return errors, so Wait only synchronises.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return aggregate, err
	}
	return aggregate, nil
}

// runUnit wraps CollectUnit with panic recovery so an unexpected failure in
// one unit (malformed API response, SDK bug) is reduced to a warning string
// instead of tearing down the whole scan.
func (d *DefaultPatchCollector) runUnit(
	ctx context.Context,
	provider common.CredentialProvider,
	scope UnitScope,
	roleName string,
) (result *UnitResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("unit panicked",
				"account", scope.AccountID, "region", scope.Region, "panic", r)
			result = &UnitResult{
				Warnings: []string{fmt.Sprintf("%s: unexpected failure: %v", scope.label(), r)},
			}
		}
	}()
	return d.CollectUnit(ctx, provider, scope, roleName)
}
