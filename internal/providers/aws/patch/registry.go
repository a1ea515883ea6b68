package patch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/fleetops-tools/patchscan/internal/models"
)

// collectRegistry pages through the SSM managed-instance registry and returns
// agent ping status keyed by instance ID. Membership in the returned map is
// the definition of "managed" for reconciliation.
//
// This must complete before patch-state collection: patch-state queries are
// scoped to the registered subset, and querying unregistered IDs wastes calls
// and can surface stale data for decommissioned instances.
func collectRegistry(ctx context.Context, client patchSSMClient) (map[string]models.AgentStatus, error) {
	registry := make(map[string]models.AgentStatus)

	paginator := ssm.NewDescribeInstanceInformationPaginator(client, &ssm.DescribeInstanceInformationInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeInstanceInformation page: %w", err)
		}
		for _, info := range page.InstanceInformationList {
			id := aws.ToString(info.InstanceId)
			if id == "" {
				continue
			}
			status := models.AgentStatus(info.PingStatus)
			if status == "" {
				status = models.AgentUnknown
			}
			registry[id] = status
		}
	}

	return registry, nil
}
