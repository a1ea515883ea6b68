package patch

import (
	"sort"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// reconcile joins the three collectors' outputs by instance ID into exactly
// one compliance record per inventory instance.
//
// The inventory set is authoritative: registry or patch-state entries whose
// ID is absent from inventory are stale and dropped, and every inventory
// instance appears in the output exactly once regardless of what the other
// two sources know about it.
//
// Classification:
//   - not in registry                → UNMANAGED, zero counts (stale
//     patch-state data for the ID is ignored, never reported as measured)
//   - in registry, no patch state    → UNMANAGED; ambiguous data must never
//     be reported as compliant
//   - failed > 0                     → NON_COMPLIANT_FAILED
//   - missing > 0                    → NON_COMPLIANT_MISSING
//   - otherwise                      → COMPLIANT
//
// Unspecified (not-applicable) counts are carried for reporting but never
// affect classification.
func reconcile(
	scope UnitScope,
	inventory map[string]inventoryInstance,
	registry map[string]models.AgentStatus,
	states map[string]patchState,
) []models.InstanceRecord {
	records := make([]models.InstanceRecord, 0, len(inventory))

	for id, inst := range inventory {
		record := models.InstanceRecord{
			AccountID:    scope.AccountID,
			AccountName:  scope.AccountName,
			Region:       scope.Region,
			InstanceID:   id,
			InstanceName: inst.Name,
			Platform:     inst.Platform,
			State:        inst.State,
			LaunchTime:   inst.LaunchTime,
		}

		agentStatus, managed := registry[id]
		if !managed {
			record.Classification = models.ClassificationUnmanaged
			record.AgentStatus = models.AgentNotInstalled
			records = append(records, record)
			continue
		}

		record.Managed = true
		record.AgentStatus = agentStatus

		state, ok := states[id]
		if !ok {
			// Registry says managed but no patch state came back
			// (transient fetch failure or never evaluated).
			record.Classification = models.ClassificationUnmanaged
			records = append(records, record)
			continue
		}

		record.Installed = state.Installed
		record.Missing = state.Missing
		record.Failed = state.Failed
		record.Unspecified = state.NotApplicable + state.Unreported

		switch {
		case state.Failed > 0:
			record.Classification = models.ClassificationNonCompliantFailed
		case state.Missing > 0:
			record.Classification = models.ClassificationNonCompliantMissing
		default:
			record.Classification = models.ClassificationCompliant
		}

		records = append(records, record)
	}

	// Map iteration order is random; sort for deterministic output.
	sort.Slice(records, func(i, j int) bool {
		return records[i].InstanceID < records[j].InstanceID
	})

	return records
}
