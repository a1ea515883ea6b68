package engine

import (
	"github.com/fleetops-tools/patchscan/internal/models"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/patch"
)

// computeSummary aggregates per-classification counts and patch totals over
// the collected result. units is the number of (account, region) pairs the
// scan scheduled.
func computeSummary(result *patch.UnitResult, units int) models.ScanSummary {
	s := models.ScanSummary{
		TotalInstances: len(result.Instances),
		UnitsScanned:   units,
		WarningCount:   len(result.Warnings),
	}

	for _, rec := range result.Instances {
		switch rec.Classification {
		case models.ClassificationCompliant:
			s.Compliant++
		case models.ClassificationNonCompliantMissing:
			s.NonCompliantMissing++
		case models.ClassificationNonCompliantFailed:
			s.NonCompliantFailed++
		case models.ClassificationUnmanaged:
			s.Unmanaged++
		}
		s.TotalMissingPatches += int64(rec.Missing)
		s.TotalFailedPatches += int64(rec.Failed)
	}

	return s
}
