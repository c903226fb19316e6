package archive

import (
	"context"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory: %v", err)
	}
	root := t.TempDir()
	fsStore, err := Open(ctx, Config{FSRoot: root})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver should be fs: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("s3 without bucket should fail")
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PLANTSIM_ARCHIVE_DRIVER", "memory")
	t.Setenv("PLANTSIM_ARCHIVE_FS_ROOT", "/tmp/x")
	t.Setenv("PLANTSIM_ARCHIVE_S3_BUCKET", "b")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverMemory || cfg.FSRoot != "/tmp/x" || cfg.S3.Bucket != "b" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
