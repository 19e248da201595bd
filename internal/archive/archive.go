// Package archive implements the Object Archive named in spec §4.3 and
// SPEC_FULL §19: cold storage for report runs and the broker-audit
// events the in-memory ring (internal/events) evicts, backed by
// aws-sdk-go-v2's S3 client (S3-compatible, so the same wiring serves
// Cloudflare R2 by pointing S3AccessKeyID/S3SecretAccessKey/S3Region at
// an R2 bucket). An empty bucket name disables archival entirely rather
// than failing process start, since not every deployment needs cold
// storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/finresearch/orchestrator/internal/events"
	"github.com/finresearch/orchestrator/internal/store"
)

// Client uploads cold-storage snapshots to one S3-compatible bucket.
type Client struct {
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// New builds a Client from explicit static credentials (spec §4.3's
// provider-credential convention: explicit config, no ambient instance
// profile lookups). A nil *Client is returned alongside a nil error when
// bucket is empty, so callers can archive.New(...) unconditionally and
// treat the result as "archival disabled" without a branch at every
// call site.
func New(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, log zerolog.Logger) (*Client, error) {
	if bucket == "" {
		return nil, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg)
	return &Client{
		uploader: manager.NewUploader(s3Client),
		bucket:   bucket,
		log:      log.With().Str("component", "archive").Logger(),
	}, nil
}

// ArchiveReportRun uploads a completed report run under
// reports/<report_type>/<id>.json (SPEC_FULL §19: "cold-storage archival
// of report runs").
func (c *Client) ArchiveReportRun(ctx context.Context, run store.ReportRun) error {
	if c == nil {
		return nil
	}
	key := fmt.Sprintf("reports/%s/%s.json", run.ReportType, run.ID)
	return c.put(ctx, key, run.ReportJSON)
}

// Write implements events.AuditSink: every BrokerEvent the ring evicts is
// archived best-effort in its own goroutine, so a slow or unreachable
// bucket never blocks a provider call on the hot path.
func (c *Client) Write(ev events.BrokerEvent) {
	if c == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := json.Marshal(ev)
		if err != nil {
			c.log.Warn().Err(err).Msg("marshaling broker event for archive")
			return
		}
		key := fmt.Sprintf("broker-events/%s/%s-%s.json", ev.Provider, ev.Timestamp.UTC().Format("20060102T150405.000"), ev.RequestID)
		if err := c.put(ctx, key, body); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("archiving broker event")
		}
	}()
}

func (c *Client) put(ctx context.Context, key string, body []byte) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: uploading %s: %w", key, err)
	}
	return nil
}
