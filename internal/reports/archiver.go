// Package reports persists final report documents beyond the result store's
// TTL, so a completed analysis survives after its Redis record expires.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"rca-copilot/internal/config"
)

const reportContentType = "text/markdown"

// Archiver stores one report document and returns where it landed. Exactly
// one implementation is chosen at startup; callers never branch.
type Archiver interface {
	Store(ctx context.Context, name string, body []byte) (string, error)
}

// NewFromConfig picks the S3 archiver when a bucket is configured and the
// local directory archiver otherwise.
func NewFromConfig(ctx context.Context, cfg config.Config) (Archiver, error) {
	if cfg.ReportsS3Bucket != "" {
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &s3Archiver{client: client, bucket: cfg.ReportsS3Bucket}, nil
	}

	baseDir := cfg.ReportsDir
	if baseDir == "" {
		baseDir = "reports"
	}
	return &localArchiver{baseDir: baseDir}, nil
}

func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.ReportsS3Region),
	}
	if cfg.ReportsS3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.ReportsS3Endpoint,
					HostnameImmutable: cfg.ReportsS3PathStyle,
					SigningRegion:     cfg.ReportsS3Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ReportsS3PathStyle
	}), nil
}

func sanitizeName(name string) string {
	name = filepath.Clean(name)
	name = strings.TrimPrefix(name, string(filepath.Separator))
	name = strings.TrimPrefix(name, "./")
	for strings.HasPrefix(name, "../") {
		name = name[3:]
	}
	return name
}

type localArchiver struct {
	baseDir string
}

func (l *localArchiver) Store(_ context.Context, name string, body []byte) (string, error) {
	path := filepath.Join(l.baseDir, sanitizeName(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

type s3Archiver struct {
	client *s3.Client
	bucket string
}

func (s *s3Archiver) Store(ctx context.Context, name string, body []byte) (string, error) {
	key := sanitizeName(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(reportContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put report: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
