package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/modules/backtest"
)

// S3Config locates the export bucket. Endpoint and UsePathStyle support
// S3-compatible stores such as R2 or MinIO.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Exporter uploads completed runs as JSON documents.
type S3Exporter struct {
	uploader uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Exporter builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Exporter(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Exporter(manager.NewUploader(client), cfg.Bucket, cfg.Prefix, log), nil
}

func newS3Exporter(u uploader, bucket, prefix string, log zerolog.Logger) *S3Exporter {
	return &S3Exporter{
		uploader: u,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "s3_exporter").Logger(),
	}
}

// Key returns the object key for a run.
func (e *S3Exporter) Key(run *backtest.Run) string {
	return path.Join(e.prefix, run.ID+".json")
}

// Export implements backtest.Exporter.
func (e *S3Exporter) Export(ctx context.Context, run *backtest.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	key := e.Key(run)
	out, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", e.bucket, key, err)
	}

	e.log.Info().
		Str("run_id", run.ID).
		Str("bucket", e.bucket).
		Str("key", key).
		Str("location", out.Location).
		Int("bytes", len(body)).
		Msg("Run exported")
	return nil
}
