package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

// S3API is the subset of the S3 client used by ArchiveStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveStore uploads finalized call artifacts to S3. With no bucket
// configured every operation is a no-op.
type ArchiveStore struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewArchiveStore creates an archive store.
func NewArchiveStore(s3Client S3API, bucket string, logger *logging.Logger) *ArchiveStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &ArchiveStore{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (a *ArchiveStore) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// ArchiveTranscript writes the finalized transcript as JSON.
func (a *ArchiveStore) ArchiveTranscript(ctx context.Context, callSID string, t *CallTranscript) error {
	if !a.Enabled() {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("records: marshal transcript for archive: %w", err)
	}
	key := archiveKey(callSID, "transcript.json", time.Now().UTC())
	if _, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("records: archive transcript %s: %w", key, err)
	}
	a.logger.Info("archived transcript", "call_sid", callSID, "s3_key", key, "outcome", t.SchedulingOutcome)
	return nil
}

// ArchiveAudio uploads one channel's WAV artifact.
func (a *ArchiveStore) ArchiveAudio(ctx context.Context, callSID, speaker string, wav []byte) error {
	if !a.Enabled() || len(wav) == 0 {
		return nil
	}
	key := archiveKey(callSID, speaker+".wav", time.Now().UTC())
	if _, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(wav),
		ContentType: aws.String("audio/wav"),
	}); err != nil {
		return fmt.Errorf("records: archive %s audio %s: %w", speaker, key, err)
	}
	a.logger.Info("archived call audio", "call_sid", callSID, "speaker", speaker, "s3_key", key)
	return nil
}

func archiveKey(callSID, name string, now time.Time) string {
	sid := strings.ReplaceAll(callSID, "/", "_")
	return fmt.Sprintf("calls/v1/by-date/%d/%02d/%02d/%s/%s", now.Year(), now.Month(), now.Day(), sid, name)
}
