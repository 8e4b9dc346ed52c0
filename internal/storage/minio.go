// Package storage archives the raw text and the reconciled result of every
// run in an S3-compatible bucket, so odd receipts can be replayed later.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/facturaIA/receipt-reconciler/internal/logger"
)

var Client *minio.Client
var BucketName string

// ErrNotConfigured means no object storage settings were found
var ErrNotConfigured = errors.New("no object storage configuration")

var log = logger.WithComponent("storage")

// Init connects to MinIO/S3 and checks the bucket
func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if endpoint == "" || accessKey == "" || secretKey == "" {
		log.Info().Msg("no object storage configuration found, archive disabled")
		return ErrNotConfigured
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "receipt-runs"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}

	Client = client
	BucketName = bucket
	log.Info().Str("bucket", bucket).Msg("object storage initialized")
	return nil
}

// Available reports whether runs can be archived
func Available() bool {
	return Client != nil
}

// RunPrefix returns the object prefix of a run
// Path format: YYYY/MM/{run_id}
func RunPrefix(runID string, at time.Time) string {
	return fmt.Sprintf("%d/%02d/%s", at.Year(), at.Month(), runID)
}

// ArchiveRun stores raw.txt and result.json under the run prefix and returns
// the bucket-qualified prefix.
func ArchiveRun(ctx context.Context, runID string, at time.Time, rawText string, resultJSON []byte) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}

	prefix := RunPrefix(runID, at)
	objects := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{name: "raw.txt", data: []byte(rawText), contentType: "text/plain; charset=utf-8"},
		{name: "result.json", data: resultJSON, contentType: "application/json"},
	}

	for _, obj := range objects {
		objectName := prefix + "/" + obj.name
		_, err := Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(obj.data), int64(len(obj.data)), minio.PutObjectOptions{
			ContentType: obj.contentType,
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", obj.name, err)
		}
	}

	return fmt.Sprintf("%s/%s", BucketName, prefix), nil
}

// GetPresignedURL generates a temporary link to an archived object
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}

	objectName := strings.TrimPrefix(objectPath, BucketName+"/")
	url, err := Client.PresignedGetObject(ctx, BucketName, objectName, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}
