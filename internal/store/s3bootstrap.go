package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3BootstrapConfig describes where to fetch the data directory's contents
// from when they are not already present on local disk. Grounded on the
// teacher's storage_backend.go S3Backend/NewS3Backend, trimmed from a
// general read/write/list/delete object store down to the one operation
// this read-only service needs: downloading missing files once at startup.
type S3BootstrapConfig struct {
	Bucket string
	Region string
	Prefix string
}

// bootstrapFiles is the on-disk filename set this service may need to
// fetch before STORE can open.
var bootstrapFiles = []string{dbFileName, "datasets.json"}

// Bootstrap downloads any of bootstrapFiles missing from dataDir from S3,
// skipping files that already exist locally (re-running the service never
// re-downloads a file it already has). A no-op when cfg.Bucket is empty.
func Bootstrap(ctx context.Context, dataDir string, cfg S3BootstrapConfig) error {
	if cfg.Bucket == "" {
		return nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	for _, name := range bootstrapFiles {
		localPath := filepath.Join(dataDir, name)
		if _, err := os.Stat(localPath); err == nil {
			continue
		}

		key := cfg.Prefix + name
		resp, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if name == "datasets.json" {
				// Optional: the catalog is derived live from the store when
				// absent, so a missing datasets.json is not fatal.
				continue
			}
			return fmt.Errorf("fetch s3://%s/%s: %w", cfg.Bucket, key, err)
		}

		if err := downloadTo(localPath, resp.Body); err != nil {
			resp.Body.Close()
			return err
		}
		resp.Body.Close()
	}

	return nil
}

func downloadTo(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
