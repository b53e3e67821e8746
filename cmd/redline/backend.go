package main

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/redline/blobstore"
	badgerstore "github.com/hupe1980/redline/blobstore/badger"
	gcsstore "github.com/hupe1980/redline/blobstore/gcs"
	miniostore "github.com/hupe1980/redline/blobstore/minio"
	s3store "github.com/hupe1980/redline/blobstore/s3"
	"github.com/hupe1980/redline/lock"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"google.golang.org/api/option"
)

// closer releases backend resources.
type closer func() error

func noClose() error { return nil }

// openBackend builds the blob store selected by cfg.Backend.
func openBackend(ctx context.Context, cfg Config) (blobstore.Store, closer, error) {
	switch cfg.Backend {
	case "memory":
		return blobstore.NewMemoryStore(), noClose, nil

	case "local":
		if cfg.Local.Root == "" {
			return nil, nil, errors.New("local: root is required")
		}
		s, err := blobstore.NewLocalStore(cfg.Local.Root)
		if err != nil {
			return nil, nil, err
		}
		return s, noClose, nil

	case "s3", "s3+dynamodb":
		return openS3(ctx, cfg)

	case "minio":
		return openMinIO(cfg.MinIO)

	case "gcs":
		return openGCS(ctx, cfg.GCS)

	case "badger":
		bc := badgerstore.DefaultConfig(cfg.Badger.Path)
		bc.InMemory = cfg.Badger.InMemory
		bc.SyncWrites = cfg.Badger.SyncWrites
		s, err := badgerstore.Open(bc)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openS3(ctx context.Context, cfg Config) (blobstore.Store, closer, error) {
	sc := cfg.S3
	if sc.Bucket == "" {
		return nil, nil, errors.New("s3: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if sc.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(sc.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})
	docs := s3store.NewStore(client, sc.Bucket, sc.Prefix)
	if cfg.Backend == "s3" {
		return docs, noClose, nil
	}

	if sc.LockTable == "" {
		return nil, nil, errors.New("s3+dynamodb: lock_table is required")
	}
	locks := s3store.NewDDBStore(dynamodb.NewFromConfig(awsCfg), sc.LockTable)
	return blobstore.NewSplitStore(docs, lock.KeyPrefix, locks), noClose, nil
}

func openMinIO(mc MinIOConfig) (blobstore.Store, closer, error) {
	if mc.Endpoint == "" || mc.Bucket == "" {
		return nil, nil, errors.New("minio: endpoint and bucket are required")
	}
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return miniostore.NewStore(client, mc.Bucket, mc.Prefix), noClose, nil
}

func openGCS(ctx context.Context, gc GCSConfig) (blobstore.Store, closer, error) {
	if gc.Bucket == "" {
		return nil, nil, errors.New("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if gc.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(gc.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return gcsstore.NewStore(client, gc.Bucket, gc.Prefix), client.Close, nil
}
