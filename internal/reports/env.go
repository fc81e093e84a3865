package reports

import (
	"context"
	"fmt"
	"os"
)

// Environment variables selecting and configuring the report object store.
const (
	EnvReportStore = "TERMCORE_REPORT_STORE" // memory | fs | s3
	EnvReportDir   = "TERMCORE_REPORT_DIR"
	EnvS3Bucket    = "TERMCORE_S3_BUCKET"
	EnvS3Region    = "TERMCORE_S3_REGION"
	EnvS3Endpoint  = "TERMCORE_S3_ENDPOINT"
	EnvS3AccessKey = "TERMCORE_S3_ACCESS_KEY"
	EnvS3SecretKey = "TERMCORE_S3_SECRET_KEY"
	EnvS3Prefix    = "TERMCORE_S3_PREFIX"
)

// OpenObjectStoreFromEnv builds the report object store selected by
// TERMCORE_REPORT_STORE. Unset defaults to memory.
func OpenObjectStoreFromEnv(ctx context.Context) (ObjectStore, error) {
	driver := os.Getenv(EnvReportStore)
	switch driver {
	case "", "memory":
		return NewMemoryObjectStore(), nil
	case "fs":
		dir := os.Getenv(EnvReportDir)
		if dir == "" {
			return nil, fmt.Errorf("%s is required for the fs report store", EnvReportDir)
		}
		return NewFSObjectStore(dir)
	case "s3":
		return NewS3ObjectStore(ctx, S3Config{
			Bucket:    os.Getenv(EnvS3Bucket),
			Region:    os.Getenv(EnvS3Region),
			Endpoint:  os.Getenv(EnvS3Endpoint),
			AccessKey: os.Getenv(EnvS3AccessKey),
			SecretKey: os.Getenv(EnvS3SecretKey),
			Prefix:    os.Getenv(EnvS3Prefix),
		})
	default:
		return nil, fmt.Errorf("unknown report store driver %q", driver)
	}
}
