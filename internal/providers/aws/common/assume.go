package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// sessionName identifies assumed-role sessions in CloudTrail.
const sessionName = "patchscan-session"

// maxRetryAttempts bounds SDK retries on throttled or transient API errors.
// Patch-state collection fans out many SSM calls per unit; unbounded retry
// would let one throttled unit stall the whole aggregation.
const maxRetryAttempts = 3

// DefaultCredentialProvider is the production implementation of
// CredentialProvider. It loads the base credential chain once (the standard
// AWS shared config files and environment) and mints per-account temporary
// credentials via STS AssumeRole against the target account's role ARN.
//
// Assumed configs are cached per account so that the N regions of one
// account share a single role session instead of issuing N AssumeRole calls.
type DefaultCredentialProvider struct {
	profile string

	mu      sync.Mutex
	base    *aws.Config
	assumed map[string]aws.Config // keyed by accountID
}

// NewDefaultCredentialProvider returns a provider backed by the real AWS SDK.
// Pass an empty profile to use the default credential chain.
func NewDefaultCredentialProvider(profile string) *DefaultCredentialProvider {
	return &DefaultCredentialProvider{
		profile: profile,
		assumed: make(map[string]aws.Config),
	}
}

// Assume implements CredentialProvider. The returned config carries
// temporary credentials for roleName in accountID and has no fixed region;
// callers obtain region-scoped copies via ConfigForRegion.
func (p *DefaultCredentialProvider) Assume(ctx context.Context, accountID, roleName string) (aws.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg, ok := p.assumed[accountID]; ok {
		return cfg, nil
	}

	base, err := p.baseConfigLocked(ctx)
	if err != nil {
		return aws.Config{}, err
	}

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
	provider := stscreds.NewAssumeRoleProvider(
		sts.NewFromConfig(*base),
		roleARN,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = sessionName
		},
	)

	cfg := *base
	cfg.Credentials = aws.NewCredentialsCache(provider)

	// Fail fast here rather than on the first collector call so the unit
	// records a single "auth failed" warning instead of one per sub-fetch.
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, fmt.Errorf("assume role %s: %w", roleARN, err)
	}

	p.assumed[accountID] = cfg
	return cfg, nil
}

// ConfigForRegion returns a copy of cfg with Region set to region.
func (p *DefaultCredentialProvider) ConfigForRegion(cfg aws.Config, region string) aws.Config {
	regional := cfg
	regional.Region = region
	return regional
}

// baseConfigLocked loads the base credential chain on first use.
// Callers must hold p.mu.
func (p *DefaultCredentialProvider) baseConfigLocked(ctx context.Context) (*aws.Config, error) {
	if p.base != nil {
		return p.base, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxRetryAttempts
			})
		}),
	}
	if p.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(p.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS base config: %w", err)
	}

	// Fall back to us-east-1 when no region is configured so STS and
	// Organizations clients can be constructed successfully.
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	p.base = &cfg
	return p.base, nil
}

// ResolveCallerIdentity returns the account ID of the base credentials.
// Used by diagnostics (patchscan doctor) to verify the credential chain
// before a scan is attempted.
func ResolveCallerIdentity(ctx context.Context, stsClient STSClient) (string, error) {
	out, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}

// BaseConfig exposes the loaded base credential chain for callers that need
// management-account clients (Organizations account discovery, doctor).
func (p *DefaultCredentialProvider) BaseConfig(ctx context.Context) (aws.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.baseConfigLocked(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	return *base, nil
}
