package patch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// inventoryInstance is the raw per-instance data extracted from EC2 before
// reconciliation. The inventory set is authoritative for "does this instance
// exist": registry or patch-state entries without a matching inventory
// instance are dropped.
type inventoryInstance struct {
	ID         string
	Name       string
	Platform   string
	State      string
	LaunchTime time.Time
}

// collectInventory pages through all running and stopped EC2 instances in the
// unit's region and returns them keyed by instance ID. Terminated and
// terminating instances are excluded by the state filter.
//
// The display name comes from the Name tag, falling back to the instance ID.
func collectInventory(ctx context.Context, client patchEC2Client) (map[string]inventoryInstance, error) {
	input := &ec2svc.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running", "stopped"},
			},
		},
	}

	inventory := make(map[string]inventoryInstance)

	paginator := ec2svc.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("DescribeInstances page: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				conv := toInventoryInstance(inst)
				if conv.ID == "" {
					continue
				}
				// Last-seen wins on page overlap; IDs are unique per
				// (account, region) so this never loses data.
				inventory[conv.ID] = conv
			}
		}
	}

	return inventory, nil
}

// toInventoryInstance converts an SDK EC2 instance to the internal shape.
func toInventoryInstance(inst ec2types.Instance) inventoryInstance {
	id := aws.ToString(inst.InstanceId)

	name := id
	for _, t := range inst.Tags {
		if aws.ToString(t.Key) == "Name" && aws.ToString(t.Value) != "" {
			name = aws.ToString(t.Value)
			break
		}
	}

	// EC2 only reports Platform for Windows; absence means Linux.
	platform := "linux"
	if inst.Platform == ec2types.PlatformValuesWindows {
		platform = "windows"
	}

	var state string
	if inst.State != nil {
		state = string(inst.State.Name)
	}

	var launchTime time.Time
	if inst.LaunchTime != nil {
		launchTime = *inst.LaunchTime
	}

	return inventoryInstance{
		ID:         id,
		Name:       name,
		Platform:   platform,
		State:      state,
		LaunchTime: launchTime,
	}
}
