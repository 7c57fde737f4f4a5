// Package s3util publishes generated images to an S3 bucket fronted by a CDN.
package s3util

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/config"
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/manifest"
)

// PutObjectAPI is the subset of *s3.Client the publisher uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client from the default AWS credential chain.
// An empty region falls back to the chain's region (AWS_REGION, profile).
func NewClient(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Publisher uploads manifest entries to one bucket and prefix.
type Publisher struct {
	client       PutObjectAPI
	bucket       string
	prefix       string
	cacheControl string
	now          func() time.Time
}

// NewPublisher creates a Publisher for the CDN settings in cdn.
func NewPublisher(client PutObjectAPI, cdn config.CDNConfig) *Publisher {
	return &Publisher{
		client:       client,
		bucket:       cdn.Bucket,
		prefix:       cdn.Prefix,
		cacheControl: cdn.CacheControl,
		now:          time.Now,
	}
}

// PublishResult counts the outcome of PublishPending.
type PublishResult struct {
	Uploaded int
	Failed   int
}

// ObjectKey joins prefix and the slash-separated output path into an S3 key.
func ObjectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	rel = strings.TrimPrefix(rel, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// Upload puts one local file under key with the given content type.
func (p *Publisher) Upload(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      &p.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	}
	if p.cacheControl != "" {
		input.CacheControl = aws.String(p.cacheControl)
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	return nil
}

// PublishPending uploads every pending manifest entry and marks the successful
// ones uploaded. Individual failures are logged and counted; a cancelled ctx
// stops before the next upload.
func (p *Publisher) PublishPending(ctx context.Context, m *manifest.Manifest) PublishResult {
	var res PublishResult
	pending := m.PendingUploads()
	if len(pending) == 0 {
		log.Info().Msg("CDN up to date, nothing to upload")
		return res
	}

	log.Info().
		Str("bucket", p.bucket).
		Str("prefix", p.prefix).
		Int("pending", len(pending)).
		Msg("Publishing outputs to CDN")

	for _, e := range pending {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("remaining", len(pending)-res.Uploaded-res.Failed).Msg("CDN publish interrupted")
			break
		}

		key := ObjectKey(p.prefix, e.Output)
		contentType := filehandler.Format(e.Format).MIMEType()
		if err := p.Upload(ctx, m.OutputPath(e.Output), key, contentType); err != nil {
			log.Warn().Err(err).Str("output", e.Output).Msg("CDN upload failed")
			res.Failed++
			continue
		}

		m.MarkUploaded(e.Output, p.now().UTC())
		res.Uploaded++
		log.Debug().Str("key", key).Str("content_type", contentType).Msg("Uploaded to CDN")
	}

	log.Info().
		Int("uploaded", res.Uploaded).
		Int("failed", res.Failed).
		Msg("CDN publish complete")
	return res
}
