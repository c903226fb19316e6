package archive

import (
	"context"
	"fmt"
	"os"

	"plantsim/internal/infra/archive/fs"
	"plantsim/internal/infra/archive/memory"
	"plantsim/internal/infra/archive/s3"
)

// S3Config parameterizes the S3 backend.
type S3Config = s3.Config

// Config selects and parameterizes an archive backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads
//
//	PLANTSIM_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	PLANTSIM_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archive)
//	(S3 variables documented in infra/archive/s3)
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(os.Getenv("PLANTSIM_ARCHIVE_DRIVER")),
		FSRoot: os.Getenv("PLANTSIM_ARCHIVE_FS_ROOT"),
		S3:     s3.ConfigFromEnv(),
	}
}

// Open constructs the backend cfg names. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		st, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverS3:
		st, err := s3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
