package repository

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// AttachmentStorage хранит файлы, приложенные к сдаче, и возвращает ссылку на них.
type AttachmentStorage interface {
	Upload(ctx context.Context, studentID, fileName, contentType string, data io.Reader, size int64) (string, error)
}

type MinIOStorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
	PublicURL      string
	ConnectTimeout time.Duration
}

type minioAttachmentStorage struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string
	logger    zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOAttachmentStorage(cfg MinIOStorageConfig, logger zerolog.Logger) (AttachmentStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = strings.TrimRight(client.EndpointURL().String(), "/")
	}

	s := &minioAttachmentStorage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: publicURL,
		logger:    logger,
	}

	// На старте не падаем, если MinIO ещё не поднялся: бакет догарантируется при загрузке.
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		logger.Error().Err(err).
			Str("endpoint", cfg.Endpoint).
			Str("bucket", cfg.Bucket).
			Msg("MinIO not ready during startup; will retry on upload")
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Bool("ssl", cfg.UseSSL).
		Msg("Attachment storage configured")

	return s, nil
}

const bucketEnsureRetries = 5

func (s *minioAttachmentStorage) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0

	err := retryWithBackOff(ctx, exp, bucketEnsureRetries, func() error {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil || exists {
			return err
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
		s.logger.Info().Str("bucket", s.bucket).Msg("Created new bucket")
		return nil
	}, func(err error, next time.Duration) {
		s.logger.Warn().Err(err).Str("bucket", s.bucket).Dur("next_retry", next).Msg("MinIO not ready, retrying")
	})
	if err != nil {
		return fmt.Errorf("minio not ready: %w", err)
	}

	s.bucketEnsured = true
	return nil
}

// retryWithBackOff повторяет op не больше maxRetries раз и прерывается по ctx.
func retryWithBackOff(ctx context.Context, b backoff.BackOff, maxRetries uint64, op func() error, notify backoff.Notify) error {
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx), notify)
}

func (s *minioAttachmentStorage) Upload(ctx context.Context, studentID, fileName, contentType string, data io.Reader, size int64) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(studentID, fileName, time.Now())

	info, err := s.client.PutObject(ctx, s.bucket, key, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("key", key).
		Str("etag", info.ETag).
		Int64("size", size).
		Msg("Attachment uploaded to MinIO")

	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// ObjectKey раскладывает вложения по студенту и месяцу загрузки.
func ObjectKey(studentID, fileName string, now time.Time) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "attachment"
	}
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "attachment"
	}

	return fmt.Sprintf("%s/%d/%02d/%s_%d%s", studentID, now.Year(), now.Month(), name, now.UnixNano(), ext)
}
