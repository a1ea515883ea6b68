package patch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// ── test doubles ──────────────────────────────────────────────────────────────

// stubEC2Client satisfies patchEC2Client with a canned response function.
type stubEC2Client struct {
	describeInstances func(*ec2svc.DescribeInstancesInput) (*ec2svc.DescribeInstancesOutput, error)
}

func (s *stubEC2Client) DescribeInstances(
	_ context.Context, params *ec2svc.DescribeInstancesInput, _ ...func(*ec2svc.Options),
) (*ec2svc.DescribeInstancesOutput, error) {
	if s.describeInstances == nil {
		return &ec2svc.DescribeInstancesOutput{}, nil
	}
	return s.describeInstances(params)
}

// stubProvider satisfies common.CredentialProvider. The account ID is smuggled
// through aws.Config.AppID so client factories can key canned data per unit.
type stubProvider struct {
	mu           sync.Mutex
	failAccounts map[string]error
	assumeCalls  []string
}

func (p *stubProvider) Assume(_ context.Context, accountID, _ string) (aws.Config, error) {
	p.mu.Lock()
	p.assumeCalls = append(p.assumeCalls, accountID)
	p.mu.Unlock()
	if err := p.failAccounts[accountID]; err != nil {
		return aws.Config{}, err
	}
	return aws.Config{AppID: accountID}, nil
}

func (p *stubProvider) ConfigForRegion(cfg aws.Config, region string) aws.Config {
	regional := cfg
	regional.Region = region
	return regional
}

// ec2Reservation wraps instances in the DescribeInstances response shape.
func ec2Reservation(ids ...string) *ec2svc.DescribeInstancesOutput {
	var instances []ec2types.Instance
	for _, id := range ids {
		instances = append(instances, ec2types.Instance{
			InstanceId: aws.String(id),
			State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		})
	}
	return &ec2svc.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}
}

// onlineRegistry returns a DescribeInstanceInformation stub reporting every
// given ID as Online.
func onlineRegistry(ids ...string) func(*ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
	return func(*ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
		out := &ssm.DescribeInstanceInformationOutput{}
		for _, id := range ids {
			out.InstanceInformationList = append(out.InstanceInformationList, ssmtypes.InstanceInformation{
				InstanceId: aws.String(id),
				PingStatus: ssmtypes.PingStatusOnline,
			})
		}
		return out, nil
	}
}

// ── CollectUnit ───────────────────────────────────────────────────────────────

func TestCollectUnit_FullPipeline(t *testing.T) {
	factory := func(cfg aws.Config) *patchClients {
		return &patchClients{
			EC2: &stubEC2Client{
				describeInstances: func(*ec2svc.DescribeInstancesInput) (*ec2svc.DescribeInstancesOutput, error) {
					return ec2Reservation("i-aaa", "i-bbb"), nil
				},
			},
			SSM: &stubSSMClient{
				instanceInfo: onlineRegistry("i-aaa"),
				patchStates: func(in *ssm.DescribeInstancePatchStatesInput) (*ssm.DescribeInstancePatchStatesOutput, error) {
					return &ssm.DescribeInstancePatchStatesOutput{
						InstancePatchStates: []ssmtypes.InstancePatchState{
							{InstanceId: aws.String("i-aaa"), InstalledCount: 10, FailedCount: 1},
						},
					}, nil
				},
			},
		}
	}

	collector := NewDefaultPatchCollectorWithFactory(factory, nil)
	result := collector.CollectUnit(context.Background(), &stubProvider{}, testScope, "readonly-role")

	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if len(result.Instances) != 2 {
		t.Fatalf("expected 2 records; got %d", len(result.Instances))
	}
	if got := recordByID(t, result.Instances, "i-aaa").Classification; got != models.ClassificationNonCompliantFailed {
		t.Errorf("i-aaa classification = %s, want NON_COMPLIANT_FAILED", got)
	}
	if got := recordByID(t, result.Instances, "i-bbb").Classification; got != models.ClassificationUnmanaged {
		t.Errorf("i-bbb classification = %s, want UNMANAGED", got)
	}
}

func TestCollectUnit_AuthFailure(t *testing.T) {
	factory := func(cfg aws.Config) *patchClients {
		t.Fatal("no clients must be constructed after auth failure")
		return nil
	}

	provider := &stubProvider{
		failAccounts: map[string]error{"111111111111": fmt.Errorf("access denied")},
	}
	collector := NewDefaultPatchCollectorWithFactory(factory, nil)
	result := collector.CollectUnit(context.Background(), provider, testScope, "readonly-role")

	if len(result.Instances) != 0 {
		t.Errorf("expected no records after auth failure; got %d", len(result.Instances))
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "prod/us-east-1") {
		t.Errorf("expected one warning tagged with account/region; got %v", result.Warnings)
	}
}

// TestCollectUnit_InventoryFailureDoesNotAbortSiblings verifies a failed
// sub-fetch degrades to empty data while the other collectors still run.
func TestCollectUnit_InventoryFailureDoesNotAbortSiblings(t *testing.T) {
	var registryCalled bool
	factory := func(cfg aws.Config) *patchClients {
		return &patchClients{
			EC2: &stubEC2Client{
				describeInstances: func(*ec2svc.DescribeInstancesInput) (*ec2svc.DescribeInstancesOutput, error) {
					return nil, fmt.Errorf("UnauthorizedOperation")
				},
			},
			SSM: &stubSSMClient{
				instanceInfo: func(in *ssm.DescribeInstanceInformationInput) (*ssm.DescribeInstanceInformationOutput, error) {
					registryCalled = true
					return &ssm.DescribeInstanceInformationOutput{}, nil
				},
				patchGroups: func(*ssm.DescribePatchGroupsInput) (*ssm.DescribePatchGroupsOutput, error) {
					return &ssm.DescribePatchGroupsOutput{
						Mappings: []ssmtypes.PatchGroupPatchBaselineMapping{
							groupMapping("prod-linux", "pb-1"),
						},
					}, nil
				},
				groupState: func(*ssm.DescribePatchGroupStateInput) (*ssm.DescribePatchGroupStateOutput, error) {
					return &ssm.DescribePatchGroupStateOutput{Instances: 4, InstancesWithInstalledPatches: 4}, nil
				},
			},
		}
	}

	collector := NewDefaultPatchCollectorWithFactory(factory, nil)
	result := collector.CollectUnit(context.Background(), &stubProvider{}, testScope, "readonly-role")

	if !registryCalled {
		t.Error("registry collector must still run after inventory failure")
	}
	if len(result.Groups) != 1 {
		t.Errorf("expected group data despite inventory failure; got %d groups", len(result.Groups))
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "EC2 inventory") {
		t.Errorf("expected one inventory warning; got %v", result.Warnings)
	}
}

// ── CollectAll ────────────────────────────────────────────────────────────────

// perUnitFactory fabricates one instance per unit, named after the unit, so
// aggregation tests can attribute records to units.
func perUnitFactory(panicRegion string) patchClientFactory {
	return func(cfg aws.Config) *patchClients {
		if cfg.Region == panicRegion {
			panic("malformed API response")
		}
		id := fmt.Sprintf("i-%s-%s", cfg.AppID, cfg.Region)
		return &patchClients{
			EC2: &stubEC2Client{
				describeInstances: func(*ec2svc.DescribeInstancesInput) (*ec2svc.DescribeInstancesOutput, error) {
					return ec2Reservation(id), nil
				},
			},
			SSM: &stubSSMClient{},
		}
	}
}

// TestCollectAll_UnitIsolation verifies a credential failure in one account
// leaves every other unit's output intact.
func TestCollectAll_UnitIsolation(t *testing.T) {
	provider := &stubProvider{
		failAccounts: map[string]error{"222222222222": fmt.Errorf("no such role")},
	}
	collector := NewDefaultPatchCollectorWithFactory(perUnitFactory(""), nil)

	result, err := collector.CollectAll(context.Background(), provider, CollectOptions{
		AccountIDs: []string{"111111111111", "222222222222", "333333333333"},
		Regions:    []string{"us-east-1", "eu-west-1"},
		RoleName:   "readonly-role",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 healthy accounts × 2 regions × 1 instance each.
	if len(result.Instances) != 4 {
		t.Fatalf("expected 4 records from healthy units; got %d", len(result.Instances))
	}
	// The failing account contributes one auth warning per region.
	if len(result.Warnings) != 2 {
		t.Errorf("expected 2 warnings; got %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if !strings.Contains(w, "222222222222") {
			t.Errorf("warning not tagged with failing account: %q", w)
		}
	}
}

// TestCollectAll_PanicConvertedToWarning verifies a panicking unit is reduced
// to a warning while the remaining units still report.
func TestCollectAll_PanicConvertedToWarning(t *testing.T) {
	collector := NewDefaultPatchCollectorWithFactory(perUnitFactory("ap-south-1"), nil)

	result, err := collector.CollectAll(context.Background(), &stubProvider{}, CollectOptions{
		AccountIDs: []string{"111111111111", "333333333333"},
		Regions:    []string{"us-east-1", "ap-south-1"},
		RoleName:   "readonly-role",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Instances) != 2 {
		t.Fatalf("expected 2 records from non-panicking units; got %d", len(result.Instances))
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 panic warnings; got %v", result.Warnings)
	}
	for _, w := range result.Warnings {
		if !strings.Contains(w, "ap-south-1") || !strings.Contains(w, "unexpected failure") {
			t.Errorf("panic warning missing unit context: %q", w)
		}
	}
}

// TestCollectAll_Progress verifies the completion signal is monotonically
// increasing and ends at the scheduled unit count.
func TestCollectAll_Progress(t *testing.T) {
	collector := NewDefaultPatchCollectorWithFactory(perUnitFactory(""), nil)

	var ticks []int
	var mu sync.Mutex
	_, err := collector.CollectAll(context.Background(), &stubProvider{}, CollectOptions{
		AccountIDs: []string{"1", "2", "3", "4"},
		Regions:    []string{"us-east-1", "eu-west-1"},
		RoleName:   "readonly-role",
		Workers:    3,
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 8 {
				t.Errorf("total = %d, want 8", total)
			}
			ticks = append(ticks, done)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ticks) != 8 {
		t.Fatalf("expected 8 progress ticks; got %d", len(ticks))
	}
	for i, tick := range ticks {
		if tick != i+1 {
			t.Fatalf("ticks not monotonically increasing: %v", ticks)
		}
	}
}

func TestCollectAll_EmptyScope(t *testing.T) {
	provider := &stubProvider{}
	collector := NewDefaultPatchCollectorWithFactory(perUnitFactory(""), nil)

	result, err := collector.CollectAll(context.Background(), provider, CollectOptions{
		AccountIDs: nil,
		Regions:    []string{"us-east-1"},
		RoleName:   "readonly-role",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Instances) != 0 || len(result.Warnings) != 0 {
		t.Errorf("empty scope must yield an empty result; got %+v", result)
	}
	if len(provider.assumeCalls) != 0 {
		t.Errorf("no assume calls expected for empty scope; got %v", provider.assumeCalls)
	}
}

// TestCollectAll_AccountNameFallback verifies records carry the raw account ID
// when no display name is supplied.
func TestCollectAll_AccountNameFallback(t *testing.T) {
	collector := NewDefaultPatchCollectorWithFactory(perUnitFactory(""), nil)

	result, err := collector.CollectAll(context.Background(), &stubProvider{}, CollectOptions{
		AccountIDs:   []string{"111111111111"},
		Regions:      []string{"us-east-1"},
		RoleName:     "readonly-role",
		AccountNames: map[string]string{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Instances) != 1 {
		t.Fatalf("expected 1 record; got %d", len(result.Instances))
	}
	if got := result.Instances[0].AccountName; got != "111111111111" {
		t.Errorf("account name = %q, want raw ID fallback", got)
	}
}
