package fakes

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// FakeS3Client implements the S3 subset the remediation handler uses. A
// bucket with no entry in BucketTags reports NoSuchTagSet, like a real
// bucket that was never tagged.
type FakeS3Client struct {
	BucketTags map[string]map[string]string

	// PublicAccessBlocks records the configuration applied per bucket.
	PublicAccessBlocks map[string]*types.PublicAccessBlockConfiguration

	GetBucketTaggingFunc     func(ctx context.Context, params *s3.GetBucketTaggingInput) (*s3.GetBucketTaggingOutput, error)
	PutPublicAccessBlockFunc func(ctx context.Context, params *s3.PutPublicAccessBlockInput) (*s3.PutPublicAccessBlockOutput, error)
}

// NewS3 creates an empty fake client.
func NewS3() *FakeS3Client {
	return &FakeS3Client{
		BucketTags:         make(map[string]map[string]string),
		PublicAccessBlocks: make(map[string]*types.PublicAccessBlockConfiguration),
	}
}

// TagBucket sets a bucket's tag set.
func (f *FakeS3Client) TagBucket(bucket string, tags map[string]string) {
	f.BucketTags[bucket] = tags
}

// GetBucketTagging returns the bucket's tags, or NoSuchTagSet.
func (f *FakeS3Client) GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	if f.GetBucketTaggingFunc != nil {
		return f.GetBucketTaggingFunc(ctx, params)
	}

	tags, ok := f.BucketTags[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "The TagSet does not exist"}
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tagSet := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return &s3.GetBucketTaggingOutput{TagSet: tagSet}, nil
}

// PutPublicAccessBlock records the applied configuration.
func (f *FakeS3Client) PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	if f.PutPublicAccessBlockFunc != nil {
		return f.PutPublicAccessBlockFunc(ctx, params)
	}

	f.PublicAccessBlocks[aws.ToString(params.Bucket)] = params.PublicAccessBlockConfiguration
	return &s3.PutPublicAccessBlockOutput{}, nil
}
