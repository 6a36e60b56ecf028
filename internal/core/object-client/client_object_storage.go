package objectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	cfg "github.com/olamide-hq/ragline/internal/config"
)

type S3ArtifactStore struct {
	client *s3.Client
	region string
	bucket string
}

func NewS3ArtifactStore(ctx context.Context, cfg *cfg.Config) (*S3ArtifactStore, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.AwsRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	log.Println("Connected to AWS S3 successfully")

	return &S3ArtifactStore{
		client: client,
		region: cfg.AwsRegion,
		bucket: cfg.BucketName,
	}, nil
}

// UploadFile streams a local file into the bucket under objectPath,
// overwriting any existing object.
func (c *S3ArtifactStore) UploadFile(ctx context.Context, localPath, objectPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	uploader := manager.NewUploader(c.client)

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err = uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectPath),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", objectPath, err)
	}
	return nil
}

// UploadJSON marshals value and writes it under objectPath,
// overwriting any existing object.
func (c *S3ArtifactStore) UploadJSON(ctx context.Context, value any, objectPath string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", objectPath, err)
	}

	ctxUpload, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = c.client.PutObject(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectPath),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", objectPath, err)
	}
	return nil
}

// DownloadFile copies the object at objectPath to localPath.
func (c *S3ArtifactStore) DownloadFile(ctx context.Context, objectPath, localPath string) error {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	body, err := c.get(ctxGet, objectPath)
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

// DownloadJSON reads the object at objectPath and unmarshals it into value.
func (c *S3ArtifactStore) DownloadJSON(ctx context.Context, objectPath string, value any) error {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	body, err := c.get(ctxGet, objectPath)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read %s: %w", objectPath, err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("unmarshal %s: %w", objectPath, err)
	}
	return nil
}

func (c *S3ArtifactStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	ctxHead, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.HeadObject(ctxHead, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", objectPath, err)
	}
	return true, nil
}

func (c *S3ArtifactStore) Delete(ctx context.Context, objectPath string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectPath, err)
	}
	return nil
}

func (c *S3ArtifactStore) get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, objectPath)
		}
		return nil, fmt.Errorf("s3 get %s: %w", objectPath, err)
	}
	return resp.Body, nil
}

var _ ArtifactStore = (*S3ArtifactStore)(nil)
