// Package aurora manages Aurora Serverless v2 capacity: an idle-aware
// pause/resume optimizer and a schedule-driven predictive scaler. Neither
// touches instances; capacity moves through the cluster's ServerlessV2
// scaling configuration with ApplyImmediately.
package aurora

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// Aurora Serverless v2 capacity bounds, in ACU.
const (
	minACU = 0.5
	maxACU = 128.0
)

const clusterAvailable = "available"

// maxReasonLength caps the free-text reason carried through results and logs.
const maxReasonLength = 500

// Result statuses shared by the optimizer and the scaler.
const (
	StatusPaused        = "paused"
	StatusAlreadyPaused = "already_paused"
	StatusResumed       = "resumed"
	StatusAlreadyActive = "already_active"
	StatusActive        = "active"
	StatusSkipped       = "skipped"
	StatusScaled        = "scaled"
	StatusNoChange      = "no_change"
)

// RDSAPI is the RDS subset both handlers use.
type RDSAPI interface {
	DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	ModifyDBCluster(ctx context.Context, params *rds.ModifyDBClusterInput, optFns ...func(*rds.Options)) (*rds.ModifyDBClusterOutput, error)
}

// clusterState is the capacity-relevant slice of a DescribeDBClusters result.
type clusterState struct {
	status string
	engine string
	min    float64
	max    float64
}

func describeCluster(ctx context.Context, client RDSAPI, clusterID string) (clusterState, error) {
	out, err := client.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{
		DBClusterIdentifier: aws.String(clusterID),
	})
	if err != nil {
		return clusterState{}, fmt.Errorf("describe cluster %s: %w", clusterID, err)
	}
	if len(out.DBClusters) == 0 {
		return clusterState{}, fmt.Errorf("cluster %s not found", clusterID)
	}

	cluster := out.DBClusters[0]
	state := clusterState{
		status: aws.ToString(cluster.Status),
		engine: aws.ToString(cluster.Engine),
		// Serverless v2 defaults when no scaling configuration is reported.
		min: 0.5,
		max: 1.0,
	}
	if sc := cluster.ServerlessV2ScalingConfiguration; sc != nil {
		if sc.MinCapacity != nil {
			state.min = *sc.MinCapacity
		}
		if sc.MaxCapacity != nil {
			state.max = *sc.MaxCapacity
		}
	}
	return state, nil
}

func modifyCapacity(ctx context.Context, client RDSAPI, clusterID string, min, max float64) error {
	_, err := client.ModifyDBCluster(ctx, &rds.ModifyDBClusterInput{
		DBClusterIdentifier: aws.String(clusterID),
		ServerlessV2ScalingConfiguration: &rdstypes.ServerlessV2ScalingConfiguration{
			MinCapacity: aws.Float64(min),
			MaxCapacity: aws.Float64(max),
		},
		ApplyImmediately: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("modify cluster %s capacity: %w", clusterID, err)
	}
	return nil
}

// sanitizeReason applies the fallback for empty reasons and truncates
// oversized ones.
func sanitizeReason(logger *logging.Logger, reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	if len(reason) > maxReasonLength {
		logger.Warn("reason truncated from %d to %d characters", len(reason), maxReasonLength)
		return reason[:maxReasonLength] + "... (truncated)"
	}
	return reason
}
