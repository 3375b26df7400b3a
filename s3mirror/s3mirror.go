// Package s3mirror best-effort mirrors a library target's view-state
// pointer files to an S3(-compatible) bucket. It never gates a safe-run
// or a library update: the safe-run command discards any error returned
// here, so a mirror failure never changes a receipt's verdict.
package s3mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/weftend/weftend/library"
)

// Config holds the S3 destination for one library root's mirror.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3mirror: bucket is required")
	}
	return nil
}

// ParsePath parses a "bucket/prefix" or bare "bucket" string.
func ParsePath(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// Mirror pushes one target's view-state pointer files to S3. Uses the
// AWS SDK default credential chain (env vars, shared config, IAM role).
type Mirror struct {
	client *s3.Client
	cfg    Config
}

// New builds a Mirror against the AWS SDK default credential chain.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3mirror: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Mirror{client: s3.NewFromConfig(awsConfig, s3Opts...), cfg: cfg}, nil
}

// mirroredFiles are the pointer files UpdateOnCompletion writes under
// a target's view/ directory, relative to library.Paths.ViewDir.
var mirroredFiles = []string{"baseline.txt", "latest.txt", "blocked.txt", "view_state.json"}

// PushTarget uploads the current view-state pointer files for one
// target. Missing files (e.g. no baseline accepted yet) are skipped,
// not an error.
func (m *Mirror) PushTarget(ctx context.Context, root, targetKey string) error {
	paths := library.TargetPaths(root, targetKey)
	for _, name := range mirroredFiles {
		localPath := filepath.Join(paths.ViewDir, name)
		data, err := os.ReadFile(localPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("s3mirror: reading %s: %w", localPath, err)
		}
		key := m.objectKey(targetKey, name)
		if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}); err != nil {
			return fmt.Errorf("s3mirror: putting %s: %w", key, err)
		}
	}
	return nil
}

func (m *Mirror) objectKey(targetKey, name string) string {
	key := filepath.ToSlash(filepath.Join(targetKey, "view", name))
	if m.cfg.Prefix == "" {
		return key
	}
	return filepath.ToSlash(filepath.Join(m.cfg.Prefix, key))
}
