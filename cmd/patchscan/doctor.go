package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/fleetops-tools/patchscan/internal/accounts"
	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
)

// DoctorResult is the structured output of patchscan doctor. It can be
// serialised to JSON via --format=json or rendered as a human-readable
// table (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	AccountsFile struct {
		Path     string `json:"path,omitempty"`
		Present  bool   `json:"present"`
		Valid    bool   `json:"valid"`
		Accounts int    `json:"accounts,omitempty"`
		Error    string `json:"error,omitempty"`
	} `json:"accounts_file"`

	OverallHealthy bool `json:"overall_healthy"`
}

// baseConfigLoader is the slice of DefaultCredentialProvider used by doctor.
// Narrowed so tests can stub the credential chain.
type baseConfigLoader interface {
	BaseConfig(ctx context.Context) (aws.Config, error)
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			accountsFile, _ := cmd.Flags().GetString("accounts-file")

			result, err := runDoctor(
				cmd.Context(),
				common.NewDefaultCredentialProvider(profile),
				common.NewSTSClient,
				profile,
				accountsFile,
				cmd.OutOrStdout(),
				format,
			)
			if err != nil {
				// Rendering failure — let Cobra/main handle it.
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main's
				// fmt.Fprintln(os.Stderr, err) path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: credential chain)")
	cmd.Flags().String("accounts-file", "", "Accounts YAML file to validate")
	return cmd
}

// runDoctor checks the base credential chain and, when a path is given, the
// accounts file, then renders the result to w in the requested format.
func runDoctor(
	ctx context.Context,
	loader baseConfigLoader,
	stsFactory common.STSClientFactory,
	profile string,
	accountsFile string,
	w io.Writer,
	format string,
) (*DoctorResult, error) {
	result := &DoctorResult{}
	result.AWS.Profile = profile

	cfg, err := loader.BaseConfig(ctx)
	if err != nil {
		result.AWS.Error = err.Error()
	} else if accountID, idErr := common.ResolveCallerIdentity(ctx, stsFactory(cfg)); idErr != nil {
		result.AWS.Error = idErr.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = accountID
	}

	// The accounts file is optional; absence of the flag is not a failure.
	result.AccountsFile.Valid = true
	if accountsFile != "" {
		result.AccountsFile.Path = accountsFile
		dir, loadErr := accounts.LoadFile(accountsFile)
		if loadErr != nil {
			result.AccountsFile.Valid = false
			result.AccountsFile.Present = !errors.Is(loadErr, os.ErrNotExist)
			result.AccountsFile.Error = loadErr.Error()
		} else {
			result.AccountsFile.Present = true
			result.AccountsFile.Accounts = len(dir.Accounts())
		}
	}

	result.OverallHealthy = result.AWS.Credentials && result.AccountsFile.Valid

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return nil, fmt.Errorf("encode doctor result: %w", err)
		}
		return result, nil
	}

	renderDoctorTable(w, result)
	return result, nil
}

func renderDoctorTable(w io.Writer, result *DoctorResult) {
	check := func(ok bool) string {
		if ok {
			return "OK"
		}
		return "FAIL"
	}

	fmt.Fprintln(w, "patchscan doctor")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "AWS credentials:  %s\n", check(result.AWS.Credentials))
	if result.AWS.AccountID != "" {
		fmt.Fprintf(w, "  account: %s\n", result.AWS.AccountID)
	}
	if result.AWS.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", result.AWS.Error)
	}

	if result.AccountsFile.Path != "" {
		fmt.Fprintf(w, "Accounts file:    %s\n", check(result.AccountsFile.Valid))
		if result.AccountsFile.Accounts > 0 {
			fmt.Fprintf(w, "  accounts: %d\n", result.AccountsFile.Accounts)
		}
		if result.AccountsFile.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", result.AccountsFile.Error)
		}
	}

	fmt.Fprintln(w)
	if result.OverallHealthy {
		fmt.Fprintln(w, "Overall: healthy")
	} else {
		fmt.Fprintln(w, "Overall: unhealthy")
	}
}
