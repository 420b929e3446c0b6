// Package s3 fetches source archives from S3-compatible object stores.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config selects the store. Empty fields fall back to the SDK's default
// credential and region chain.
type Config struct {
	Endpoint        string // custom endpoint for non-AWS stores
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Fetcher streams objects out of a bucket
type Fetcher struct {
	client *s3.Client
}

// NewFetcher builds an S3 client from cfg
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, error) {
	var options []func(*config.LoadOptions) error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	region := cfg.Region
	if region == "" && cfg.Endpoint != "" {
		region = "auto"
	}
	if region != "" {
		options = append(options, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &Fetcher{client: client}, nil
}

// Fetch copies bucket/key into w and returns the number of bytes written
func (f *Fetcher) Fetch(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	output, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	//nolint:errcheck // Defer close on response body
	defer output.Body.Close()

	n, err := io.Copy(w, output.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}
