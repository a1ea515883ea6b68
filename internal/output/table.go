package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// ANSI color codes for classification output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiYellow  = "\033[0;33m"
	ansiGreen   = "\033[0;32m"
	ansiBlue    = "\033[0;34m"
)

// TableOptions controls which columns RenderInstances renders and how
// classification is coloured.
type TableOptions struct {
	// Colored wraps classification labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeAccount adds ACCOUNT and REGION columns (useful for
	// multi-account scans; single-unit output usually drops them).
	IncludeAccount bool

	// IncludeAgent adds an AGENT column with SSM ping status.
	IncludeAgent bool
}

// ColorClassification wraps a classification string with ANSI codes when
// colored is true. When colored is false the string is returned unchanged
// (CI-safe default).
func ColorClassification(c models.Classification, colored bool) string {
	s := string(c)
	if !colored {
		return s
	}
	switch c {
	case models.ClassificationNonCompliantFailed:
		return ansiBoldRed + s + ansiReset
	case models.ClassificationNonCompliantMissing:
		return ansiYellow + s + ansiReset
	case models.ClassificationCompliant:
		return ansiGreen + s + ansiReset
	case models.ClassificationUnmanaged:
		return ansiBlue + s + ansiReset
	default:
		return s
	}
}

// classificationCell returns the classification padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are
// plain so subsequent columns stay aligned regardless of ANSI support.
func classificationCell(c models.Classification, width int, colored bool) string {
	text := string(c)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	var code string
	switch c {
	case models.ClassificationNonCompliantFailed:
		code = ansiBoldRed
	case models.ClassificationNonCompliantMissing:
		code = ansiYellow
	case models.ClassificationCompliant:
		code = ansiGreen
	case models.ClassificationUnmanaged:
		code = ansiBlue
	default:
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max bytes for ID/label columns.
// A single-char ellipsis replaces the last byte when truncation occurs.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// RenderInstances writes a formatted per-instance compliance table to w.
//
// Column order:
//
//	INSTANCE ID  NAME  [ACCOUNT]  [REGION]  PLATFORM  STATUS  [AGENT]  INST/MISS/FAIL  STATE
func RenderInstances(w io.Writer, instances []models.InstanceRecord, opts TableOptions) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "No instances.")
		return
	}

	// Fixed column display widths.
	const (
		wInstance = 20
		wName     = 24
		wAccount  = 16
		wRegion   = 15
		wPlatform = 8
		wStatus   = 22
		wAgent    = 14
		wCounts   = 16
	)

	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wInstance, "INSTANCE ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wName, "NAME"))
	if opts.IncludeAccount {
		hb.WriteString(fmt.Sprintf("  %-*s", wAccount, "ACCOUNT"))
		hb.WriteString(fmt.Sprintf("  %-*s", wRegion, "REGION"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wPlatform, "PLATFORM"))
	hb.WriteString(fmt.Sprintf("  %-*s", wStatus, "STATUS"))
	if opts.IncludeAgent {
		hb.WriteString(fmt.Sprintf("  %-*s", wAgent, "AGENT"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wCounts, "INST/MISS/FAIL"))
	hb.WriteString("  STATE")
	header := hb.String()

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, rec := range instances {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wInstance, truncateField(rec.InstanceID, wInstance)))
		rb.WriteString(fmt.Sprintf("  %-*s", wName, truncateField(rec.InstanceName, wName)))
		if opts.IncludeAccount {
			rb.WriteString(fmt.Sprintf("  %-*s", wAccount, truncateField(rec.AccountName, wAccount)))
			rb.WriteString(fmt.Sprintf("  %-*s", wRegion, truncateField(rec.Region, wRegion)))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wPlatform, rec.Platform))
		rb.WriteString("  " + classificationCell(rec.Classification, wStatus, opts.Colored))
		if opts.IncludeAgent {
			rb.WriteString(fmt.Sprintf("  %-*s", wAgent, truncateField(string(rec.AgentStatus), wAgent)))
		}
		counts := fmt.Sprintf("%d/%d/%d", rec.Installed, rec.Missing, rec.Failed)
		rb.WriteString(fmt.Sprintf("  %-*s", wCounts, counts))
		rb.WriteString("  " + rec.State)
		fmt.Fprintln(w, rb.String())
	}
}

// RenderGroups writes the patch-group rollup table to w. Collection already
// filtered out zero-instance groups.
func RenderGroups(w io.Writer, groups []models.PatchGroupSummary) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No patch groups.")
		return
	}

	const (
		wGroup    = 24
		wBaseline = 28
		wAccount  = 16
		wRegion   = 15
	)

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %9s  %9s  %13s  %11s",
		wGroup, "PATCH GROUP",
		wBaseline, "BASELINE",
		wAccount, "ACCOUNT",
		wRegion, "REGION",
		"INSTANCES", "COMPLIANT", "NON-COMPLIANT", "UNSPECIFIED")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, g := range groups {
		fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %9d  %9d  %13d  %11d\n",
			wGroup, truncateField(g.GroupName, wGroup),
			wBaseline, truncateField(g.BaselineID, wBaseline),
			wAccount, truncateField(g.AccountName, wAccount),
			wRegion, truncateField(g.Region, wRegion),
			g.Instances, g.Compliant, g.NonCompliant, g.Unspecified)
	}
}

// RenderWarnings writes the per-unit warning log to w. A scan with failures
// is never all-or-nothing: the tables above carry whatever the succeeding
// units produced and this block surfaces what did not.
func RenderWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "Warnings (%d):\n", len(warnings))
	for _, warning := range warnings {
		fmt.Fprintf(w, "  - %s\n", warning)
	}
}

// RenderSummary writes the compact scan summary block to w.
func RenderSummary(w io.Writer, report *models.ScanReport, colored bool) {
	s := report.Summary

	fmt.Fprintf(w, "Accounts: %d  Regions: %d  Units: %d  Role: %s\n",
		len(report.AccountIDs), len(report.Regions), s.UnitsScanned, report.RoleName)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Instances:  %d\n", s.TotalInstances)
	fmt.Fprintf(w, "  %-24s %d\n", ColorClassification(models.ClassificationCompliant, colored)+":", s.Compliant)
	fmt.Fprintf(w, "  %-24s %d\n", ColorClassification(models.ClassificationNonCompliantMissing, colored)+":", s.NonCompliantMissing)
	fmt.Fprintf(w, "  %-24s %d\n", ColorClassification(models.ClassificationNonCompliantFailed, colored)+":", s.NonCompliantFailed)
	fmt.Fprintf(w, "  %-24s %d\n", ColorClassification(models.ClassificationUnmanaged, colored)+":", s.Unmanaged)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Missing Patches:  %d\n", s.TotalMissingPatches)
	fmt.Fprintf(w, "Failed Patches:   %d\n", s.TotalFailedPatches)
	if s.WarningCount > 0 {
		fmt.Fprintf(w, "Warnings:         %d\n", s.WarningCount)
	}
}
