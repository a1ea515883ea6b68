package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// CredentialProvider produces temporary AWS credentials scoped to a target
// account by assuming a cross-account IAM role. It is the sole entry point
// for credential management across the entire provider layer.
//
// Implementations must use the AWS SDK v2 only. Never call the aws CLI.
type CredentialProvider interface {
	// Assume returns an aws.Config carrying temporary credentials for the
	// named role in accountID. A failure here means the whole
	// (account, region) collection unit cannot proceed; callers surface it
	// as a warning and continue with sibling units.
	Assume(ctx context.Context, accountID, roleName string) (aws.Config, error)

	// ConfigForRegion clones cfg with the target region set.
	// Use this to obtain a region-scoped aws.Config for SDK client construction.
	ConfigForRegion(cfg aws.Config, region string) aws.Config
}
