// Bulk-import tool: loads a GeoJSON FeatureCollection into the regions
// table, either from a local file or from the dataset bucket. Re-running the
// same dataset is a no-op: existing regions are skipped by name.
//
// With both -file and -object the file is archived to the dataset bucket
// before importing, so the exact payload of every import stays retrievable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"coverage-service/internal/config"
	miniodb "coverage-service/internal/database/minio"
	"coverage-service/internal/database/postgres"
	"coverage-service/internal/models"
	"coverage-service/internal/repository"
	"coverage-service/internal/services"
)

func main() {
	var (
		filePath = flag.String("file", "", "path to a GeoJSON FeatureCollection file")
		bucket   = flag.String("bucket", miniodb.Storage.Datasets, "MinIO bucket holding the dataset")
		object   = flag.String("object", "", "MinIO object name of the dataset")
	)
	flag.Parse()

	if *filePath == "" && *object == "" {
		log.Fatal("either -file or -object is required")
	}

	cfg := config.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	data, err := loadDataset(ctx, cfg, *filePath, *bucket, *object)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}

	var collection models.FeatureCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		log.Fatalf("failed to parse GeoJSON: %v", err)
	}
	if collection.Type != models.FeatureCollectionType {
		log.Fatalf("expected a %s, got %q", models.FeatureCollectionType, collection.Type)
	}

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	importService := services.NewImportService(repository.NewRegionRepository(db), nil)

	summary, err := importService.ImportFeatureCollection(ctx, &collection)
	if err != nil {
		log.Printf("import aborted, nothing persisted: %v", err)
		os.Exit(1)
	}

	log.Printf("import complete: batch=%s created=%d skipped_missing_name=%d skipped_duplicate=%d",
		summary.BatchID, summary.Created, summary.SkippedMissingName, summary.SkippedDuplicate)
}

func loadDataset(ctx context.Context, cfg *config.CoverageServiceConfig, filePath, bucket, object string) ([]byte, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		if object != "" {
			if err := archiveDataset(ctx, cfg, bucket, object, data); err != nil {
				return nil, err
			}
		}
		return data, nil
	}

	client, err := miniodb.NewMinioClient(cfg.MinioCfg)
	if err != nil {
		return nil, err
	}
	return client.DownloadBytes(ctx, bucket, object)
}

func archiveDataset(ctx context.Context, cfg *config.CoverageServiceConfig, bucket, object string, data []byte) error {
	client, err := miniodb.NewMinioClient(cfg.MinioCfg)
	if err != nil {
		return err
	}
	if err := client.EnsureBuckets(ctx); err != nil {
		return err
	}
	if err := client.UploadBytes(ctx, bucket, object, data, "application/geo+json"); err != nil {
		return err
	}
	log.Printf("archived dataset to %s/%s", bucket, object)
	return nil
}
