package store

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"

	"github.com/grobbelaar/cdntest/stats"
)

type S3Config struct {
	Bucket       string
	KeyPrefix    string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	RetryCount   int
	RetryWait    time.Duration
}

// S3Uploader copies the finished report to object storage. Upload failures
// are retried with exponential backoff; they never invalidate the local
// report.
type S3Uploader struct {
	client *s3.Client
	cfg    S3Config
	log    zerolog.Logger
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}

	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AccessKey,
					SecretAccessKey: cfg.SecretKey,
				}, nil
			},
		)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		options.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Uploader{
		client: client,
		cfg:    cfg,
		log:    log2.With().Str("component", "s3_uploader").Caller().Logger(),
	}, nil
}

// UploadReport uploads filePath under the configured key prefix and returns
// the object ETag.
func (u *S3Uploader) UploadReport(ctx context.Context, filePath string) (string, error) {
	key := path.Join(u.cfg.KeyPrefix, path.Base(filePath))
	log := u.log.With().Str("bucket", u.cfg.Bucket).Str("key", key).Logger()

	var etag string

	err := stats.WithRetries(
		ctx,
		u.cfg.RetryCount,
		u.cfg.RetryWait,
		func(attempt int, wait time.Duration, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying report upload")
		},
		func(ctx context.Context) error {
			file, err := os.Open(filePath)
			if err != nil {
				return errors.Wrap(err, "failed to open report file")
			}

			defer file.Close()

			output, err := u.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(u.cfg.Bucket),
				Key:         aws.String(key),
				Body:        file,
				ContentType: aws.String("text/csv"),
			})
			if err != nil {
				return errors.Wrap(err, "failed to put object")
			}

			etag = aws.ToString(output.ETag)

			return nil
		},
	)
	if err != nil {
		return "", err
	}

	log.Info().Str("etag", etag).Msg("report uploaded")

	return etag, nil
}
