package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/storage"
)

// MinioOptions configures an S3 compatible drive.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Folder    string
	Transport http.RoundTripper
	Spool     *storage.Spool
	Logger    *infra.Logger
}

// MinioDrive uploads portraits to a public-read bucket.
type MinioDrive struct {
	client *minio.Client
	bucket string
	region string
	spool  *storage.Spool
	logger *infra.Logger

	mu    sync.Mutex
	ready bool
}

func NewMinioDrive(opts MinioOptions) (*MinioDrive, error) {
	if strings.TrimSpace(opts.Endpoint) == "" || opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, errors.New("minio: endpoint and credentials are required")
	}
	if opts.Spool == nil {
		return nil, errors.New("minio: spool is required")
	}
	client, err := minio.New(strings.TrimSpace(opts.Endpoint), &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}
	bucket := strings.TrimSpace(opts.Folder)
	if bucket == "" {
		bucket = "game-characters"
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &MinioDrive{client: client, bucket: bucket, region: opts.Region, spool: opts.Spool, logger: logger}, nil
}

// Upload spools the portrait to disk, stores it in the folder bucket and
// returns the object key and its public URL. The spool file is removed on
// every path.
func (d *MinioDrive) Upload(ctx context.Context, image []byte) (Upload, error) {
	if len(image) == 0 {
		return Upload{}, fmt.Errorf("%w: %w", domain.ErrDelivery, domain.ErrEmptyImage)
	}
	if err := d.ensureBucket(ctx); err != nil {
		return Upload{}, fmt.Errorf("%w: minio: %w", domain.ErrDelivery, err)
	}

	path, release, err := d.spool.Write(ctx, "portrait-*.png", image)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	defer func() {
		if err := release(); err != nil {
			d.logger.Warn().Err(err).Msg("minio: spool cleanup failed")
		}
	}()

	key := uuid.NewString() + ".png"
	info, err := d.client.FPutObject(ctx, d.bucket, key, path, minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return Upload{}, fmt.Errorf("%w: minio: put object: %w", domain.ErrDelivery, err)
	}
	link := strings.TrimRight(d.client.EndpointURL().String(), "/") + "/" + d.bucket + "/" + key
	d.logger.Info().Str("bucket", d.bucket).Str("key", key).Int64("size", info.Size).Msg("minio: portrait uploaded")
	return Upload{FileID: key, ShareLink: link}, nil
}

// ensureBucket finds or creates the folder bucket and grants anonymous read.
func (d *MinioDrive) ensureBucket(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}
	exists, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := d.client.MakeBucket(ctx, d.bucket, minio.MakeBucketOptions{Region: d.region}); err != nil {
			code := minio.ToErrorResponse(err).Code
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("make bucket: %w", err)
			}
		}
	}
	if err := d.client.SetBucketPolicy(ctx, d.bucket, publicReadPolicy(d.bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	d.ready = true
	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

var _ Drive = (*MinioDrive)(nil)
