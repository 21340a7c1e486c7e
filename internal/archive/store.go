// Package archive exports the interaction log to S3 as daily JSONL files
// with personal details scrubbed.
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

	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store writes interaction exports to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// DayKey is the object key for the export of the given UTC day.
func DayKey(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("interactions/v1/by-date/%d/%02d/%02d/interactions.jsonl",
		day.Year(), day.Month(), day.Day())
}

// ExportDay reads every record created on the given UTC day and writes them
// to a single JSONL object. An empty day writes nothing.
func (s *Store) ExportDay(ctx context.Context, reader interactionlog.Reader, day time.Time) (ExportResult, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	result := ExportResult{Date: start.Format("2006-01-02")}
	if !s.Enabled() {
		return result, nil
	}
	if reader == nil {
		return result, fmt.Errorf("archive: reader is nil")
	}

	records, err := reader.ListBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return result, fmt.Errorf("archive: list %s: %w", result.Date, err)
	}
	if len(records) == 0 {
		s.logger.Info("no interactions to archive", "date", result.Date)
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		out := ToArchiveRecord(rec)
		if out.EmergencyAlert {
			result.EmergencyCount++
		}
		if err := enc.Encode(out); err != nil {
			return result, fmt.Errorf("archive: encode %s: %w", rec.RequestID, err)
		}
	}
	result.RecordCount = len(records)
	result.S3Key = DayKey(start)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(result.S3Key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return result, fmt.Errorf("archive: s3 put %s: %w", result.S3Key, err)
	}

	s.logger.Info("archived interactions to S3",
		"date", result.Date,
		"s3_key", result.S3Key,
		"records", result.RecordCount,
		"emergencies", result.EmergencyCount,
	)

	entry := ManifestEntry{
		Date:           result.Date,
		S3Key:          result.S3Key,
		RecordCount:    result.RecordCount,
		EmergencyCount: result.EmergencyCount,
		ExportedAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, start, entry); err != nil {
		// the day file is already written
		s.logger.Warn("failed to append manifest", "error", err, "date", result.Date)
	}

	return result, nil
}

// ToArchiveRecord converts a log record into its scrubbed export form.
func ToArchiveRecord(rec interactionlog.Record) InteractionRecord {
	query := ScrubPII(rec.Query)
	response := ScrubPII(rec.Response)
	return InteractionRecord{
		Version:        recordVersion,
		RequestID:      rec.RequestID,
		UserHash:       HashUserID(rec.UserID),
		Query:          query,
		Response:       response,
		Intent:         rec.Intent,
		RiskLevel:      rec.RiskLevel,
		EmergencyAlert: rec.EmergencyAlert,
		CreatedAt:      rec.CreatedAt.UTC(),
		Labels: Labels{
			Category:    categorize(rec),
			PIIRedacted: query != rec.Query || response != rec.Response,
		},
	}
}

func categorize(rec interactionlog.Record) string {
	switch rec.Intent {
	case "emergency":
		return "emergency"
	case "error":
		return "error"
	case "system_fallback":
		return "fallback"
	case "health_query":
		return "ai_answer"
	case "symptom_check":
		if rec.RiskLevel == "medium" || strings.Contains(rec.Response, "Possible causes") {
			return "knowledge"
		}
	}
	return "rule"
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, day time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	manifestKey := fmt.Sprintf("interactions/v1/manifests/%d-%02d.jsonl", day.Year(), day.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: get manifest: %w", err)
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
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404")
}
