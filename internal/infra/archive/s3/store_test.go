package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/smithy-go"

	"plantsim/internal/archive/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMockForTests()
	if s.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver")
	}
	info, err := s.Put(ctx, "runs/r1/ledger.jsonl", strings.NewReader("{\"step\":1}\n"), core.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"steps": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 11 || info.ContentType != "application/x-ndjson" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["steps"] != "1" {
		t.Fatalf("metadata lost: %+v", info.Metadata)
	}
	if _, err := s.Put(ctx, "runs/r1/ledger.jsonl", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := s.Get(ctx, "runs/r1/ledger.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{\"step\":1}\n" {
		t.Fatalf("unexpected body %q", body)
	}

	_, _ = s.Put(ctx, "runs/r0/ledger.jsonl", strings.NewReader("{}"), core.PutOptions{})
	list, err := s.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "runs/r0/ledger.jsonl" {
		t.Fatalf("unexpected list %+v", list)
	}

	if ok, err := s.Delete(ctx, "runs/r0/ledger.jsonl"); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "runs/r0/ledger.jsonl"); ok {
		t.Fatalf("second delete must report missing")
	}
	if _, err := s.Head(ctx, "runs/r0/ledger.jsonl"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := s.Get(ctx, "runs/r0/ledger.jsonl"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
}

func TestPresignURL(t *testing.T) {
	s := NewMockForTests()
	u, err := s.PresignURL(context.Background(), "runs/r1/ledger.jsonl", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(u, "runs/r1/ledger.jsonl") || !strings.Contains(u, "X-Amz-Signature") {
		t.Fatalf("unexpected url %s", u)
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

type fakeAPIError struct{ code string }

func (e fakeAPIError) Error() string                 { return e.code }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.code }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var _ smithy.APIError = fakeAPIError{}

func TestMapError(t *testing.T) {
	if err := mapError(fakeAPIError{code: "NoSuchKey"}, "k"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("NoSuchKey should map to ErrNotFound, got %v", err)
	}
	other := fakeAPIError{code: "AccessDenied"}
	if err := mapError(other, "k"); errors.Is(err, core.ErrNotFound) {
		t.Fatalf("AccessDenied must pass through")
	}
}

func TestDecodeChunked(t *testing.T) {
	got, err := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n1\r\n!\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"))
	if err != nil || string(got) != "hello!" {
		t.Fatalf("decode: %q %v", got, err)
	}
	if _, err := decodeChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected bad size error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	t.Setenv("PLANTSIM_ARCHIVE_S3_BUCKET", "ledgers")
	t.Setenv("PLANTSIM_ARCHIVE_S3_PATH_STYLE", "TRUE")
	cfg := ConfigFromEnv()
	if cfg.Bucket != "ledgers" || !cfg.PathStyle {
		t.Fatalf("unexpected env config %+v", cfg)
	}
}
