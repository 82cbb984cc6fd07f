package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type capturingS3 struct {
	input *s3.PutObjectInput
}

func (c *capturingS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.input = params
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveKeyPartitioning(t *testing.T) {
	s := &Summary{
		SessionID: "sess_abc",
		EndedAt:   time.Date(2026, 3, 7, 18, 30, 0, 0, time.UTC),
	}
	want := "sessions/year=2026/month=03/day=07/sess_abc.json.gz"
	if got := ArchiveKey(s); got != want {
		t.Errorf("ArchiveKey = %q, want %q", got, want)
	}
}

func TestArchivePutCompressesAndUploads(t *testing.T) {
	client := &capturingS3{}
	archive := NewArchive(client, "analytics-bucket", nil)

	summary := &Summary{
		SessionID:         "sess_abc",
		EndedAt:           time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		QualificationTier: "sales_ready",
		TotalCostUSD:      0.42,
	}
	if err := archive.Put(context.Background(), summary); err != nil {
		t.Fatalf("put: %v", err)
	}
	if client.input == nil {
		t.Fatal("no upload captured")
	}

	if aws.ToString(client.input.Bucket) != "analytics-bucket" {
		t.Errorf("bucket = %q", aws.ToString(client.input.Bucket))
	}
	if aws.ToString(client.input.Key) != "sessions/year=2026/month=08/day=29/sess_abc.json.gz" {
		t.Errorf("key = %q", aws.ToString(client.input.Key))
	}
	if aws.ToString(client.input.ContentEncoding) != "gzip" {
		t.Errorf("content encoding = %q", aws.ToString(client.input.ContentEncoding))
	}

	// The body must round-trip through gunzip back to the summary.
	raw, err := io.ReadAll(client.input.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	decompressed, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read gunzip: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal(decompressed, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SessionID != "sess_abc" || decoded.TotalCostUSD != 0.42 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestArchiveDisabledIsNoOp(t *testing.T) {
	client := &capturingS3{}
	archive := NewArchive(client, "", nil)

	if archive.Enabled() {
		t.Error("archive with empty bucket should be disabled")
	}
	if err := archive.Put(context.Background(), &Summary{SessionID: "x"}); err != nil {
		t.Fatalf("disabled put should be a no-op, got %v", err)
	}
	if client.input != nil {
		t.Error("disabled archive must not upload")
	}

	var nilArchive *Archive
	if nilArchive.Enabled() {
		t.Error("nil archive should report disabled")
	}
}
