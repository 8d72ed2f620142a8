package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/mumuon/drivefinder/kml-service/internal/config"
)

// S3Backend reads s3://bucket/key objects from AWS S3 or an S3-compatible
// store such as R2 or Wasabi. The client is created on first use.
type S3Backend struct {
	cfg config.S3Config

	mu         sync.Mutex
	client     *s3.Client
	downloader *manager.Downloader
}

// NewS3Backend creates an S3 backend.
func NewS3Backend(cfg config.S3Config) *S3Backend {
	return &S3Backend{cfg: cfg}
}

func (b *S3Backend) init(ctx context.Context) (*s3.Client, *manager.Downloader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client, b.downloader, nil
	}

	logger := slog.With("endpoint", b.cfg.Endpoint, "region", b.cfg.Region)
	logger.Debug("initializing S3 client")

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRegion(b.cfg.Region),
	}
	if b.cfg.AccessKeyID != "" && b.cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.cfg.AccessKeyID,
			b.cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	b.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if b.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	b.downloader = manager.NewDownloader(b.client)

	logger.Debug("S3 client initialized")
	return b.client, b.downloader, nil
}

// Read implements Backend. The object size is checked with HeadObject before
// any bytes are downloaded.
func (b *S3Backend) Read(ctx context.Context, loc *url.URL, limit int64) ([]byte, error) {
	bucket, key, err := bucketAndKey(loc)
	if err != nil {
		return nil, err
	}

	client, downloader, err := b.init(ctx)
	if err != nil {
		return nil, err
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	var size int64
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	if size > limit {
		return nil, ErrTooLarge
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to download object %s: %w", key, err)
	}

	data := buf.Bytes()
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
