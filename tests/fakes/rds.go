package fakes

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
)

// RDSCluster holds the state of one fake Aurora cluster.
type RDSCluster struct {
	Status      string
	Engine      string
	MinCapacity float64
	MaxCapacity float64
	// NoScalingConfig omits ServerlessV2ScalingConfiguration from
	// describe output.
	NoScalingConfig bool
}

// FakeRDSClient implements the RDS subset the aurora handlers use.
type FakeRDSClient struct {
	Clusters map[string]*RDSCluster

	// ModifyCalls records every capacity change, oldest first.
	ModifyCalls []*rds.ModifyDBClusterInput

	DescribeDBClustersFunc func(ctx context.Context, params *rds.DescribeDBClustersInput) (*rds.DescribeDBClustersOutput, error)
	ModifyDBClusterFunc    func(ctx context.Context, params *rds.ModifyDBClusterInput) (*rds.ModifyDBClusterOutput, error)
}

// NewRDS creates an empty fake client.
func NewRDS() *FakeRDSClient {
	return &FakeRDSClient{Clusters: make(map[string]*RDSCluster)}
}

// AddCluster installs a cluster, defaulting status to available and
// engine to aurora-postgresql.
func (f *FakeRDSClient) AddCluster(id string, cluster *RDSCluster) {
	if cluster.Status == "" {
		cluster.Status = "available"
	}
	if cluster.Engine == "" {
		cluster.Engine = "aurora-postgresql"
	}
	f.Clusters[id] = cluster
}

func (f *FakeRDSClient) DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error) {
	if f.DescribeDBClustersFunc != nil {
		return f.DescribeDBClustersFunc(ctx, params)
	}

	id := aws.ToString(params.DBClusterIdentifier)
	cluster, ok := f.Clusters[id]
	if !ok {
		return nil, &types.DBClusterNotFoundFault{
			Message: aws.String(fmt.Sprintf("DBCluster %s not found", id)),
		}
	}

	out := types.DBCluster{
		DBClusterIdentifier: aws.String(id),
		Status:              aws.String(cluster.Status),
		Engine:              aws.String(cluster.Engine),
		EngineVersion:       aws.String("15.4"),
	}
	if !cluster.NoScalingConfig {
		out.ServerlessV2ScalingConfiguration = &types.ServerlessV2ScalingConfigurationInfo{
			MinCapacity: aws.Float64(cluster.MinCapacity),
			MaxCapacity: aws.Float64(cluster.MaxCapacity),
		}
	}
	return &rds.DescribeDBClustersOutput{DBClusters: []types.DBCluster{out}}, nil
}

func (f *FakeRDSClient) ModifyDBCluster(ctx context.Context, params *rds.ModifyDBClusterInput, optFns ...func(*rds.Options)) (*rds.ModifyDBClusterOutput, error) {
	if f.ModifyDBClusterFunc != nil {
		return f.ModifyDBClusterFunc(ctx, params)
	}

	f.ModifyCalls = append(f.ModifyCalls, params)

	id := aws.ToString(params.DBClusterIdentifier)
	cluster, ok := f.Clusters[id]
	if !ok {
		return nil, &types.DBClusterNotFoundFault{
			Message: aws.String(fmt.Sprintf("DBCluster %s not found", id)),
		}
	}
	if sc := params.ServerlessV2ScalingConfiguration; sc != nil {
		if sc.MinCapacity != nil {
			cluster.MinCapacity = *sc.MinCapacity
		}
		if sc.MaxCapacity != nil {
			cluster.MaxCapacity = *sc.MaxCapacity
		}
		cluster.NoScalingConfig = false
	}
	return &rds.ModifyDBClusterOutput{}, nil
}
