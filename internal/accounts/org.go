package accounts

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
)

// OrganizationsClient is the subset of AWS Organizations operations used for
// account discovery. Narrowed for test mocking.
type OrganizationsClient interface {
	ListAccounts(
		ctx context.Context,
		params *organizations.ListAccountsInput,
		optFns ...func(*organizations.Options),
	) (*organizations.ListAccountsOutput, error)
}

// DiscoverOrgAccounts pages through Organizations ListAccounts and returns a
// directory of every ACTIVE account. Must be called with management-account
// (or delegated-administrator) credentials.
//
// Suspended and pending accounts are excluded: they cannot be scanned and
// would only produce assume-role noise in the warning log.
func DiscoverOrgAccounts(ctx context.Context, client OrganizationsClient) (*StaticDirectory, error) {
	var list []Account

	input := &organizations.ListAccountsInput{}
	paginator := organizations.NewListAccountsPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Organizations ListAccounts page: %w", err)
		}
		for _, acct := range page.Accounts {
			if acct.Status != orgtypes.AccountStatusActive {
				continue
			}
			list = append(list, Account{
				ID:     aws.ToString(acct.Id),
				Name:   aws.ToString(acct.Name),
				Email:  aws.ToString(acct.Email),
				Status: string(acct.Status),
			})
		}
	}

	return NewStaticDirectory(list), nil
}
