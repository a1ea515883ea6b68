package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/fleetops-tools/patchscan/internal/providers/aws/common"
)

// ── test doubles ──────────────────────────────────────────────────────────────

type stubLoader struct {
	err error
}

func (s *stubLoader) BaseConfig(context.Context) (aws.Config, error) {
	if s.err != nil {
		return aws.Config{}, s.err
	}
	return aws.Config{Region: "us-east-1"}, nil
}

type stubSTSClient struct {
	accountID string
	err       error
}

func (s *stubSTSClient) GetCallerIdentity(
	context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options),
) (*sts.GetCallerIdentityOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(s.accountID)}, nil
}

func stubSTSFactory(client common.STSClient) common.STSClientFactory {
	return func(aws.Config) common.STSClient { return client }
}

// ── runDoctor ─────────────────────────────────────────────────────────────────

func TestRunDoctorHealthy(t *testing.T) {
	var buf strings.Builder
	result, err := runDoctor(
		context.Background(),
		&stubLoader{},
		stubSTSFactory(&stubSTSClient{accountID: "111111111111"}),
		"default",
		"",
		&buf,
		"table",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OverallHealthy || !result.AWS.Credentials {
		t.Errorf("expected healthy result; got %+v", result)
	}
	if result.AWS.AccountID != "111111111111" {
		t.Errorf("account ID = %q, want 111111111111", result.AWS.AccountID)
	}
	if out := buf.String(); !strings.Contains(out, "Overall: healthy") {
		t.Errorf("table output missing healthy verdict:\n%s", out)
	}
}

func TestRunDoctorCredentialFailure(t *testing.T) {
	var buf strings.Builder
	result, err := runDoctor(
		context.Background(),
		&stubLoader{err: fmt.Errorf("no credential providers in chain")},
		stubSTSFactory(&stubSTSClient{}),
		"",
		"",
		&buf,
		"table",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.OverallHealthy || result.AWS.Credentials {
		t.Errorf("expected unhealthy result; got %+v", result)
	}
	if !strings.Contains(result.AWS.Error, "credential providers") {
		t.Errorf("credential error not captured: %q", result.AWS.Error)
	}
	if out := buf.String(); !strings.Contains(out, "Overall: unhealthy") {
		t.Errorf("table output missing unhealthy verdict:\n%s", out)
	}
}

func TestRunDoctorIdentityFailure(t *testing.T) {
	var buf strings.Builder
	result, err := runDoctor(
		context.Background(),
		&stubLoader{},
		stubSTSFactory(&stubSTSClient{err: fmt.Errorf("ExpiredToken")}),
		"",
		"",
		&buf,
		"table",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.OverallHealthy {
		t.Errorf("expected unhealthy result when identity lookup fails; got %+v", result)
	}
	if !strings.Contains(result.AWS.Error, "ExpiredToken") {
		t.Errorf("identity error not captured: %q", result.AWS.Error)
	}
}

func TestRunDoctorAccountsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	content := "accounts:\n  - id: \"111111111111\"\n    name: prod\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write accounts file: %v", err)
	}

	var buf strings.Builder
	result, err := runDoctor(
		context.Background(),
		&stubLoader{},
		stubSTSFactory(&stubSTSClient{accountID: "111111111111"}),
		"",
		path,
		&buf,
		"table",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	af := result.AccountsFile
	if !af.Present || !af.Valid || af.Accounts != 1 {
		t.Errorf("accounts file check wrong: %+v", af)
	}
	if !result.OverallHealthy {
		t.Errorf("expected healthy result; got %+v", result)
	}
}

func TestRunDoctorAccountsFileMissing(t *testing.T) {
	var buf strings.Builder
	result, err := runDoctor(
		context.Background(),
		&stubLoader{},
		stubSTSFactory(&stubSTSClient{accountID: "111111111111"}),
		"",
		filepath.Join(t.TempDir(), "absent.yaml"),
		&buf,
		"table",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	af := result.AccountsFile
	if af.Present || af.Valid {
		t.Errorf("missing file must be flagged absent and invalid: %+v", af)
	}
	if result.OverallHealthy {
		t.Errorf("missing accounts file must fail the overall check; got %+v", result)
	}
}

func TestRunDoctorJSONFormat(t *testing.T) {
	var buf strings.Builder
	_, err := runDoctor(
		context.Background(),
		&stubLoader{},
		stubSTSFactory(&stubSTSClient{accountID: "111111111111"}),
		"",
		"",
		&buf,
		"json",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"overall_healthy": true`) {
		t.Errorf("JSON output missing overall_healthy:\n%s", out)
	}
	if !strings.Contains(out, `"account_id": "111111111111"`) {
		t.Errorf("JSON output missing account_id:\n%s", out)
	}
}
