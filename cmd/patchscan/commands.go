package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/spf13/cobra"

	"github.com/fleetops-tools/patchscan/internal/accounts"
	"github.com/fleetops-tools/patchscan/internal/engine"
	"github.com/fleetops-tools/patchscan/internal/models"
	"github.com/fleetops-tools/patchscan/internal/output"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/patch"
	"github.com/fleetops-tools/patchscan/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "patchscan",
		Short: "patchscan — multi-account SSM patch compliance scanner",
	}
	root.AddCommand(newScanCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

func newScanCmd() *cobra.Command {
	var (
		profile      string
		accountIDs   []string
		accountsFile string
		useOrg       bool
		regions      []string
		roleName     string
		workers      int
		reportFmt    string
		outputPath   string
		summary      bool
		catalog      bool
		colored      bool
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan patch compliance across accounts and regions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			}))

			provider := common.NewDefaultCredentialProvider(profile)

			directory, err := resolveDirectory(ctx, provider, accountsFile, useOrg)
			if err != nil {
				return err
			}
			if len(accountIDs) == 0 && len(directory.Accounts()) == 0 {
				return fmt.Errorf("no accounts selected: pass --accounts, --accounts-file, or --org")
			}

			collector := patch.NewDefaultPatchCollector(logger)
			eng := engine.NewDefaultScanEngine(provider, directory, collector)

			var progress func(done, total int)
			if reportFmt != "json" {
				progress = func(done, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "scanned %d/%d units\n", done, total)
				}
			}

			report, err := eng.RunScan(ctx, engine.ScanOptions{
				AccountIDs:     accountIDs,
				Regions:        regions,
				RoleName:       roleName,
				Workers:        workers,
				IncludeCatalog: catalog,
				OnProgress:     progress,
			})
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if outputPath != "" {
				if err := writeReportToFile(outputPath, report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if summary {
				output.RenderSummary(out, report, colored)
				output.RenderWarnings(out, report.Warnings)
				return nil
			}
			if reportFmt == "json" {
				return printJSON(out, report)
			}

			output.RenderSummary(out, report, colored)
			fmt.Fprintln(out)
			output.RenderInstances(out, report.Instances, output.TableOptions{
				Colored:        colored,
				IncludeAccount: true,
				IncludeAgent:   true,
			})
			fmt.Fprintln(out)
			output.RenderGroups(out, report.Groups)
			fmt.Fprintln(out)
			output.RenderWarnings(out, report.Warnings)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile for the base credential chain (default: environment)")
	cmd.Flags().StringSliceVar(&accountIDs, "accounts", nil, "Account ID(s) to scan (default: all accounts in the directory)")
	cmd.Flags().StringVar(&accountsFile, "accounts-file", "", "YAML file mapping account IDs to display names")
	cmd.Flags().BoolVar(&useOrg, "org", false, "Discover accounts via AWS Organizations (management account credentials)")
	cmd.Flags().StringSliceVar(&regions, "regions", []string{"us-east-1"}, "AWS region(s) to scan")
	cmd.Flags().StringVar(&roleName, "role", "readonly-role", "IAM role to assume in each target account")
	cmd.Flags().IntVar(&workers, "workers", 0, "Max concurrent account/region units (default 10)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write full JSON report to this file path (in addition to stdout output)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print compact summary only")
	cmd.Flags().BoolVar(&catalog, "catalog", false, "Include the available-patch catalog in the report (large)")
	cmd.Flags().BoolVar(&colored, "color", false, "Colorize classification output")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log per-unit collection progress")

	return cmd
}

// resolveDirectory builds the account directory from the flags: an explicit
// YAML file wins, then Organizations discovery, then an empty directory
// (names fall back to raw account IDs).
func resolveDirectory(
	ctx context.Context,
	provider *common.DefaultCredentialProvider,
	accountsFile string,
	useOrg bool,
) (accounts.Directory, error) {
	if accountsFile != "" {
		dir, err := accounts.LoadFile(accountsFile)
		if err != nil {
			return nil, err
		}
		return dir, nil
	}

	if useOrg {
		cfg, err := provider.BaseConfig(ctx)
		if err != nil {
			return nil, err
		}
		dir, err := accounts.DiscoverOrgAccounts(ctx, organizationsClient(cfg))
		if err != nil {
			return nil, fmt.Errorf("discover organization accounts: %w", err)
		}
		return dir, nil
	}

	return accounts.NewStaticDirectory(nil), nil
}

// organizationsClient wraps the SDK constructor so resolveDirectory stays
// decoupled from the concrete client type in tests.
func organizationsClient(cfg aws.Config) accounts.OrganizationsClient {
	return organizations.NewFromConfig(cfg)
}

// printJSON writes the report as indented JSON to w.
func printJSON(w io.Writer, report *models.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeReportToFile serialises report as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeReportToFile(path string, report *models.ScanReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file %q: %w", path, err)
	}
	return nil
}
