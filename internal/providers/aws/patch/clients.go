package patch

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ---------------------------------------------------------------------------
// Narrow client interfaces
//
// Each interface lists only the SDK operations used by this package.
// The real *ec2.Client and *ssm.Client satisfy these automatically.
// Replace any field in patchClients with a stub struct in unit tests.
// ---------------------------------------------------------------------------

// patchEC2Client covers the EC2 operations required for inventory collection.
// Satisfies ec2.DescribeInstancesAPIClient for the SDK v2 paginator.
type patchEC2Client interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2svc.DescribeInstancesInput,
		optFns ...func(*ec2svc.Options),
	) (*ec2svc.DescribeInstancesOutput, error)
}

// patchSSMClient covers the SSM operations required for registry, patch-state,
// patch-group, and catalog collection. The paged operations also satisfy the
// corresponding ssm.*APIClient paginator interfaces.
type patchSSMClient interface {
	DescribeInstanceInformation(
		ctx context.Context,
		params *ssm.DescribeInstanceInformationInput,
		optFns ...func(*ssm.Options),
	) (*ssm.DescribeInstanceInformationOutput, error)

	DescribeInstancePatchStates(
		ctx context.Context,
		params *ssm.DescribeInstancePatchStatesInput,
		optFns ...func(*ssm.Options),
	) (*ssm.DescribeInstancePatchStatesOutput, error)

	DescribePatchGroups(
		ctx context.Context,
		params *ssm.DescribePatchGroupsInput,
		optFns ...func(*ssm.Options),
	) (*ssm.DescribePatchGroupsOutput, error)

	DescribePatchGroupState(
		ctx context.Context,
		params *ssm.DescribePatchGroupStateInput,
		optFns ...func(*ssm.Options),
	) (*ssm.DescribePatchGroupStateOutput, error)

	DescribeAvailablePatches(
		ctx context.Context,
		params *ssm.DescribeAvailablePatchesInput,
		optFns ...func(*ssm.Options),
	) (*ssm.DescribeAvailablePatchesOutput, error)
}

// ---------------------------------------------------------------------------
// patchClients and factory
// ---------------------------------------------------------------------------

// patchClients holds the service clients needed for one (account, region)
// collection unit. All fields are interfaces — swap any with a mock in tests.
type patchClients struct {
	EC2 patchEC2Client
	SSM patchSSMClient
}

// patchClientFactory creates a patchClients from a region-scoped aws.Config.
type patchClientFactory func(cfg aws.Config) *patchClients

// newDefaultPatchClients is the production patchClientFactory.
func newDefaultPatchClients(cfg aws.Config) *patchClients {
	return &patchClients{
		EC2: ec2svc.NewFromConfig(cfg),
		SSM: ssm.NewFromConfig(cfg),
	}
}
