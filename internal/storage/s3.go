package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"feedchain/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Accepted proof image types and the extension their keys get.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ErrUnsupportedType is returned for uploads that are not jpeg, png or webp.
var ErrUnsupportedType = errors.New("proof image must be jpeg, png or webp")

// ProofKeyPrefix is the key prefix of every proof image stored for claimID.
func ProofKeyPrefix(claimID string) string {
	return "proofs/" + claimID + "/"
}

// IsProofOf reports whether key names an object directly under the proof
// prefix of claimID.
func IsProofOf(claimID, key string) bool {
	if claimID == "" {
		return false
	}
	name, ok := strings.CutPrefix(key, ProofKeyPrefix(claimID))
	return ok && name != "" && !strings.Contains(name, "/") && name != "." && name != ".."
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ProofStorage keeps proof-of-delivery images in one bucket under
// proofs/<claim id>/.
type S3ProofStorage struct {
	client objectAPI
	bucket string
}

func NewS3ProofStorage(client *s3.Client, bucket string) *S3ProofStorage {
	return &S3ProofStorage{client: client, bucket: bucket}
}

// UploadProof stores the image and returns its object key.
func (s *S3ProofStorage) UploadProof(ctx context.Context, claimID string, body io.Reader, size int64, contentType string) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := ProofKeyPrefix(claimID) + utils.NanoIDSize(16) + ext

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload proof image to s3: %w", err)
	}

	return key, nil
}

// DeleteProof removes an uploaded image. Deleting a missing key is not an error.
func (s *S3ProofStorage) DeleteProof(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return utils.ErrorWrapOrNil(err, "failed to delete proof image from s3")
}
