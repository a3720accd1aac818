package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/inconshreveable/log15"

	"github.com/opsgrove/snapsweep/internal/models"
	"github.com/opsgrove/snapsweep/pkg/utils"
)

// unknownVolumeID groups snapshots whose source volume the API does not
// report (copied snapshots and snapshots of long-deleted volumes).
const unknownVolumeID = "unknown"

// EC2Client is the inventory source and deletion sink backed by the
// EC2 API.
type EC2Client struct {
	client *ec2.Client
	region string
	log    log15.Logger
}

// NewEC2Client creates an EC2Client for the given region using the
// default credential chain.
func NewEC2Client(ctx context.Context, region string, log log15.Logger) (*EC2Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return &EC2Client{
		client: ec2.NewFromConfig(cfg),
		region: region,
		log:    log,
	}, nil
}

// FetchInventory builds the per-run snapshot inventory: all snapshots
// owned by this account grouped by source volume and sorted oldest
// first, with in-use status cross-referenced against the account's AMIs
// and volume tags resolved for the critical-volume check. Volumes that
// no longer exist get an entry with nil tags.
func (c *EC2Client) FetchInventory(ctx context.Context) (*models.Inventory, error) {
	inUse, err := c.describeImageSnapshotIDs(ctx)
	if err != nil {
		return nil, err
	}

	byVolume := make(map[string][]models.Snapshot)
	total := 0
	paginator := ec2.NewDescribeSnapshotsPaginator(c.client, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying snapshots: %w", err)
		}
		for _, snap := range page.Snapshots {
			volumeID := unknownVolumeID
			if snap.VolumeId != nil && *snap.VolumeId != "" {
				volumeID = *snap.VolumeId
			}
			var sizeGB int32
			if snap.VolumeSize != nil {
				sizeGB = *snap.VolumeSize
			}
			byVolume[volumeID] = append(byVolume[volumeID], models.Snapshot{
				ID:          aws.ToString(snap.SnapshotId),
				VolumeID:    volumeID,
				StartTime:   aws.ToTime(snap.StartTime),
				Tags:        utils.TagsToMap(snap.Tags),
				InUse:       inUse[aws.ToString(snap.SnapshotId)],
				SizeGB:      sizeGB,
				Description: aws.ToString(snap.Description),
			})
			total++
		}
	}
	c.log.Debug("described snapshots", "region", c.region, "snapshots", total)

	volumeTags, err := c.describeVolumeTags(ctx)
	if err != nil {
		return nil, err
	}

	inv := &models.Inventory{SnapshotsByVolume: byVolume}
	for volumeID, snaps := range byVolume {
		sort.SliceStable(snaps, func(i, j int) bool {
			if snaps[i].StartTime.Equal(snaps[j].StartTime) {
				return snaps[i].ID < snaps[j].ID
			}
			return snaps[i].StartTime.Before(snaps[j].StartTime)
		})
		inv.Volumes = append(inv.Volumes, models.Volume{
			ID:   volumeID,
			Tags: volumeTags[volumeID],
		})
	}
	// Deterministic volume order keeps the plan stable between a
	// dry-run preview and the live run.
	sort.Slice(inv.Volumes, func(i, j int) bool {
		return inv.Volumes[i].ID < inv.Volumes[j].ID
	})
	return inv, nil
}

// DeleteSnapshot removes one snapshot, translating API failures into
// the deletion error taxonomy.
func (c *EC2Client) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := c.client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	if err != nil {
		return classifyDeleteError(err)
	}
	return nil
}

// describeImageSnapshotIDs returns the set of snapshot IDs referenced
// by block device mappings of AMIs owned by this account. Deleting
// those snapshots would break the image.
func (c *EC2Client) describeImageSnapshotIDs(ctx context.Context) (map[string]bool, error) {
	referenced := make(map[string]bool)
	paginator := ec2.NewDescribeImagesPaginator(c.client, &ec2.DescribeImagesInput{
		Owners: []string{"self"},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying images: %w", err)
		}
		for _, image := range page.Images {
			for _, bdm := range image.BlockDeviceMappings {
				if bdm.Ebs != nil && bdm.Ebs.SnapshotId != nil {
					referenced[*bdm.Ebs.SnapshotId] = true
				}
			}
		}
	}
	c.log.Debug("cross-referenced AMI snapshots", "region", c.region, "referenced", len(referenced))
	return referenced, nil
}

// describeVolumeTags returns the tags of every volume in the region.
// Describing all volumes instead of the snapshot-referenced subset
// avoids the bulk-describe failure mode where one missing volume ID
// fails the whole request.
func (c *EC2Client) describeVolumeTags(ctx context.Context) (map[string]map[string]string, error) {
	tags := make(map[string]map[string]string)
	paginator := ec2.NewDescribeVolumesPaginator(c.client, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying volumes: %w", err)
		}
		for _, vol := range page.Volumes {
			if vol.VolumeId != nil {
				tags[*vol.VolumeId] = utils.TagsToMap(vol.Tags)
			}
		}
	}
	return tags, nil
}
