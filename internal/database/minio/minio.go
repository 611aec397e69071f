package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"coverage-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient wraps the MinIO client with coverage service specific functionality
type MinioClient struct {
	client *minio.Client
	config config.MinioConfig
}

// Storage defines bucket names for coverage service data
var Storage = struct {
	Datasets string
}{
	Datasets: "geojson-datasets",
}

// BucketNames contains all bucket names for coverage service
var BucketNames = []string{
	Storage.Datasets,
}

// NewMinioClient initializes a new MinIO client with the provided configuration
func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	// Parse MinIO URL to extract endpoint
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("Invalid value for MinIO secure flag: %v. Defaulting to false.", err)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err = minioClient.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}

	log.Printf("Successfully connected to MinIO at %s", cfg.MinioURL)

	return &MinioClient{client: minioClient, config: cfg}, nil
}

// EnsureBuckets creates the coverage service buckets if they are missing
func (m *MinioClient) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range BucketNames {
		exists, err := m.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			err = m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.config.MinioLocation})
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
			log.Printf("Created bucket: %s", bucket)
		}
	}
	return nil
}

// DownloadBytes fetches an object into memory. Used to pull GeoJSON datasets
// for bulk imports.
func (m *MinioClient) DownloadBytes(ctx context.Context, bucket, objectName string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, objectName, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, objectName, err)
	}
	return data, nil
}

// UploadBytes stores a dataset object
func (m *MinioClient) UploadBytes(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s/%s: %w", bucket, objectName, err)
	}
	return nil
}
