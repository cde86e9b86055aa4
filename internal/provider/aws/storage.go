package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ferry/internal/fault"
	"github.com/yairfalse/ferry/internal/inventory"
	"github.com/yairfalse/ferry/internal/retry"
)

// EnsureBucket creates the bucket. A bucket we already own counts as success.
func (p *Provider) EnsureBucket(ctx context.Context, bucket string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}

	// us-east-1 rejects an explicit location constraint
	if p.region != "" && p.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}

	err := retry.Run(ctx, p.retry, "create bucket", func(ctx context.Context) error {
		_, err := p.s3Client.CreateBucket(ctx, input)
		return err
	})
	if alreadyOwned(err) {
		log.Debug().Str("bucket", bucket).Msg("bucket already exists")
		return nil
	}
	return err
}

func alreadyOwned(err error) bool {
	if err == nil {
		return false
	}
	var owned *s3types.BucketAlreadyOwnedByYou
	return errors.As(err, &owned) || fault.HasCode(err, "BucketAlreadyOwnedByYou")
}

// PutFile uploads the file at path as bucket/key.
// The file is closed on every return path.
func (p *Provider) PutFile(ctx context.Context, bucket, key, path string, publicRead bool) error {
	f, err := os.Open(path) // #nosec G304 -- path is the file the user asked to upload
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("path", path).Msg("close upload file")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if publicRead {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}

	return retry.Run(ctx, p.retry, "put object", func(ctx context.Context) error {
		// rewind in case a previous attempt consumed the body
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind %s: %w", path, err)
		}
		_, err := p.s3Client.PutObject(ctx, input)
		return err
	})
}

// Buckets returns the names of all buckets owned by the account.
func (p *Provider) Buckets(ctx context.Context) ([]string, error) {
	output, err := retry.Do(ctx, p.retry, "list buckets", func(ctx context.Context) (*s3.ListBucketsOutput, error) {
		return p.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(output.Buckets))
	for _, bucket := range output.Buckets {
		names = append(names, aws.ToString(bucket.Name))
	}
	return names, nil
}

// ListObjects fetches one page of object metadata. An empty token starts at the beginning.
func (p *Provider) ListObjects(ctx context.Context, bucket, token string) (inventory.ObjectPage, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	output, err := retry.Do(ctx, p.retry, "list objects", func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
		return p.s3Client.ListObjectsV2(ctx, input)
	})
	if err != nil {
		return inventory.ObjectPage{}, err
	}

	page := inventory.ObjectPage{
		Sizes:     make([]int64, 0, len(output.Contents)),
		Truncated: aws.ToBool(output.IsTruncated),
		NextToken: aws.ToString(output.NextContinuationToken),
	}
	for _, obj := range output.Contents {
		page.Sizes = append(page.Sizes, aws.ToInt64(obj.Size))
	}
	return page, nil
}
