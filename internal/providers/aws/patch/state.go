package patch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// maxPatchStateBatch is the identifier cap per DescribeInstancePatchStates
// call. Batched calls are mandatory: one call per instance would multiply
// latency and burn API rate limits across a large fleet.
const maxPatchStateBatch = 100

// patchState holds the per-instance patch counts for the current baseline
// evaluation. Consumed by the reconciler and discarded.
type patchState struct {
	Installed     int32
	Missing       int32
	Failed        int32
	NotApplicable int32
	Unreported    int32
}

// collectPatchStates fetches patch counts for the given instance IDs, issuing
// batched DescribeInstancePatchStates calls of at most maxPatchStateBatch
// identifiers. The caller scopes instanceIDs to inventory ∩ registry.
//
// Results are keyed by instance ID; when the API returns the same ID on more
// than one page the last-seen record wins.
func collectPatchStates(ctx context.Context, client patchSSMClient, instanceIDs []string) (map[string]patchState, error) {
	states := make(map[string]patchState, len(instanceIDs))

	for start := 0; start < len(instanceIDs); start += maxPatchStateBatch {
		end := start + maxPatchStateBatch
		if end > len(instanceIDs) {
			end = len(instanceIDs)
		}
		batch := instanceIDs[start:end]

		paginator := ssm.NewDescribeInstancePatchStatesPaginator(client, &ssm.DescribeInstancePatchStatesInput{
			InstanceIds: batch,
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return states, fmt.Errorf("DescribeInstancePatchStates batch %d-%d: %w", start, end, err)
			}
			for _, ps := range page.InstancePatchStates {
				id := aws.ToString(ps.InstanceId)
				if id == "" {
					continue
				}
				states[id] = patchState{
					Installed:     ps.InstalledCount,
					Missing:       ps.MissingCount,
					Failed:        ps.FailedCount,
					NotApplicable: ps.NotApplicableCount,
					Unreported:    aws.ToInt32(ps.UnreportedNotApplicableCount),
				}
			}
		}
	}

	return states, nil
}

// collectPatchGroups fetches every patch-group-to-baseline mapping and the
// aggregate compliance state of each group. A group whose state fetch fails
// is skipped so one broken group does not lose the others, and groups with
// zero instances are dropped as noise.
func collectPatchGroups(ctx context.Context, client patchSSMClient, scope UnitScope) ([]models.PatchGroupSummary, error) {
	var groups []models.PatchGroupSummary

	paginator := ssm.NewDescribePatchGroupsPaginator(client, &ssm.DescribePatchGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return groups, fmt.Errorf("DescribePatchGroups page: %w", err)
		}

		for _, mapping := range page.Mappings {
			groupName := aws.ToString(mapping.PatchGroup)
			if groupName == "" {
				continue
			}

			baselineID := "N/A"
			if mapping.BaselineIdentity != nil && mapping.BaselineIdentity.BaselineId != nil {
				baselineID = aws.ToString(mapping.BaselineIdentity.BaselineId)
			}

			state, err := client.DescribePatchGroupState(ctx, &ssm.DescribePatchGroupStateInput{
				PatchGroup: aws.String(groupName),
			})
			if err != nil {
				// Sporadic per-group failures are cosmetic; skip the group.
				continue
			}
			if state.Instances == 0 {
				continue
			}

			groups = append(groups, models.PatchGroupSummary{
				AccountID:    scope.AccountID,
				AccountName:  scope.AccountName,
				Region:       scope.Region,
				GroupName:    groupName,
				BaselineID:   baselineID,
				Instances:    state.Instances,
				Compliant:    state.InstancesWithInstalledPatches,
				NonCompliant: state.InstancesWithMissingPatches + state.InstancesWithFailedPatches,
				Unspecified: state.InstancesWithNotApplicablePatches +
					aws.ToInt32(state.InstancesWithUnreportedNotApplicablePatches),
			})
		}
	}

	return groups, nil
}

// collectCatalog pages through the patches available for this region's
// platforms. The catalog is not scoped to the instance set and may repeat a
// patch ID across units; dedup-by-ID is the presentation layer's job
// (models.DistinctPatches).
func collectCatalog(ctx context.Context, client patchSSMClient, scope UnitScope) ([]models.CatalogPatch, error) {
	var patches []models.CatalogPatch

	paginator := ssm.NewDescribeAvailablePatchesPaginator(client, &ssm.DescribeAvailablePatchesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return patches, fmt.Errorf("DescribeAvailablePatches page: %w", err)
		}
		for _, p := range page.Patches {
			cp := models.CatalogPatch{
				AccountID:      scope.AccountID,
				AccountName:    scope.AccountName,
				Region:         scope.Region,
				PatchID:        aws.ToString(p.Id),
				Title:          aws.ToString(p.Title),
				Classification: aws.ToString(p.Classification),
				Severity:       aws.ToString(p.Severity),
				ContentURL:     aws.ToString(p.ContentUrl),
			}
			if p.ReleaseDate != nil {
				cp.ReleaseDate = *p.ReleaseDate
			}
			patches = append(patches, cp)
		}
	}

	return patches, nil
}
