package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/voicelane/callcore/pkg/logging"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive writes session summaries to S3, gzipped and Hive-partitioned by
// date so Athena can query them without a crawler.
type Archive struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewArchive creates an archive. If bucket is empty, all operations are no-ops.
func NewArchive(s3Client S3API, bucket string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// ArchiveKey builds the partitioned object key for a summary.
func ArchiveKey(s *Summary) string {
	t := s.EndedAt.UTC()
	return fmt.Sprintf("sessions/year=%d/month=%02d/day=%02d/%s.json.gz",
		t.Year(), int(t.Month()), t.Day(), s.SessionID)
}

// Put uploads one summary.
func (a *Archive) Put(ctx context.Context, summary *Summary) error {
	if !a.Enabled() {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("export: marshal summary: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("export: compress summary: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("export: compress summary: %w", err)
	}

	key := ArchiveKey(summary)
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("export: s3 put %s: %w", key, err)
	}

	a.logger.Info("archived session summary to S3",
		"session_id", summary.SessionID,
		"s3_key", key,
		"bytes", buf.Len(),
	)
	return nil
}
