// Package archive keeps a durable history of dashboard KPI snapshots in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives KPI snapshots to S3. Patient rows are redacted first.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// SnapshotKey is the object key of a snapshot generated at t.
func SnapshotKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("kpis/v1/%d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), t.Format("20060102T150405Z"))
}

// ArchiveSnapshot writes a redacted snapshot as JSON and appends it to the
// monthly manifest. It returns the object key.
func (s *Store) ArchiveSnapshot(ctx context.Context, k *analytics.KPIs, ruleVersion string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	data, err := json.Marshal(RedactSnapshot(k))
	if err != nil {
		return "", fmt.Errorf("archive: marshal snapshot: %w", err)
	}

	generated := k.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	s3Key := SnapshotKey(generated)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", s3Key, err)
	}

	s.logger.Info("archived kpi snapshot to S3",
		"s3_key", s3Key,
		"total_patients", k.TotalPatients,
		"total_appointments", k.TotalAppointments,
	)

	entry := ManifestEntry{
		SnapshotKey:       analytics.SnapshotKey(k.Period, ruleVersion),
		S3Key:             s3Key,
		RuleVersion:       ruleVersion,
		PeriodStart:       k.Period.Start,
		PeriodEnd:         k.Period.End,
		GeneratedAt:       generated,
		TotalPatients:     k.TotalPatients,
		TotalAppointments: k.TotalAppointments,
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// the snapshot itself is already stored
		s.logger.Warn("failed to append manifest", "error", err, "s3_key", s3Key)
	}
	return s3Key, nil
}

func manifestKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("kpis/v1/manifests/%d-%02d.jsonl", t.Year(), t.Month())
}

// AppendManifest appends a JSONL line to the manifest of the entry's month.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := manifestKey(entry.GeneratedAt)
	existing, err := s.read(ctx, key)
	if err != nil && !isNotFound(err) {
		return err
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// Manifest lists the entries archived during the month of t.
func (s *Store) Manifest(ctx context.Context, t time.Time) ([]ManifestEntry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	data, err := s.read(ctx, manifestKey(t))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []ManifestEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e ManifestEntry
		if err := json.Unmarshal(line, &e); err != nil {
			s.logger.Warn("skipping corrupt manifest line", "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}

// isNotFound checks for a missing S3 object. Some S3-compatible stores do not
// return the typed error, so the message is checked as well.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
