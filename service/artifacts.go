package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
)

// ArtifactStore archives downloaded case documents to object storage so
// they survive the per-case temp directory cleanup. Objects live under a
// per-case prefix, which a resubmission wipes along with the durable record.
type ArtifactStore struct {
	client *minio.Client
	bucket string
}

func NewArtifactStore(cfg *config.MinioConfig) (*ArtifactStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArtifactStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ArchiveDocument uploads one downloaded document under the case's prefix.
func (s *ArtifactStore) ArchiveDocument(ctx context.Context, caseNumber, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}

	objectName := s.objectName(caseNumber, filepath.Base(localPath))
	_, err = s.client.PutObject(ctx, s.bucket, objectName, file, stat.Size(), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	return nil
}

// RemoveCasePrefix deletes every archived object for the case. Used when a
// resubmission wipes the prior record.
func (s *ArtifactStore) RemoveCasePrefix(ctx context.Context, caseNumber string) error {
	prefix := s.objectName(caseNumber, "")
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objects {
		if object.Err != nil {
			return fmt.Errorf("failed to list artifacts: %w", object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to delete artifact %s: %w", object.Key, err)
		}
	}

	return nil
}

func (s *ArtifactStore) objectName(caseNumber, fileName string) string {
	return fmt.Sprintf("cases/%s/%s", sanitizeFilename(caseNumber), fileName)
}
