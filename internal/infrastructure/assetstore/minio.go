package assetstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"landlease/internal/domain"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinIOStore keeps assets in one bucket of an S3-compatible server.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", endpoint, err)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errExists := client.BucketExists(ctx, bucket)
		if errExists != nil || !exists {
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", bucket, err, errExists)
		}
		log.Info().Str("bucket", bucket).Msg("minio: bucket already exists")
	} else {
		log.Info().Str("bucket", bucket).Msg("minio: bucket created")
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) Provider() string { return "minio" }

func (s *MinIOStore) Upload(ctx context.Context, f File) (domain.AssetRef, error) {
	contentType := ContentTypeFor(f.ContentType, f.Name)
	kind := KindFor(contentType, f.Name)
	key := fmt.Sprintf("%s/%s%s", folder(kind), uuid.New().String(), strings.ToLower(filepath.Ext(f.Name)))

	info, err := s.client.PutObject(ctx, s.bucket, key, f.Body, f.Size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-filename": safeName(f.Name)},
	})
	if err != nil {
		return domain.AssetRef{}, domain.UploadError("Upload to object storage failed", fmt.Errorf("put %s/%s: %w", s.bucket, key, err))
	}

	fileURL := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), info.Bucket, info.Key)
	return domain.AssetRef{URL: fileURL, ExternalID: info.Key, Kind: kind, MimeType: contentType}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, externalID string, _ domain.AssetKind) error {
	if externalID == "" {
		return domain.ValidationError("Missing externalId")
	}
	err := s.client.RemoveObject(ctx, s.bucket, externalID, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return domain.DeleteError("Failed to delete file", fmt.Errorf("remove %s/%s: %w", s.bucket, externalID, err))
}
