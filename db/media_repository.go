package db

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	fig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/techagentng/achat/config"
)

// MediaRepository is the blob-storage boundary: upload with metadata, build a
// public URL, delete by URL.
type MediaRepository interface {
	UploadMedia(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error)
	DeleteMedia(ctx context.Context, fileURL string) error
}

type mediaRepo struct {
	client *s3.Client
	bucket string
	region string
}

func NewMediaRepo(conf *config.Config) (MediaRepository, error) {
	cfg, err := fig.LoadDefaultConfig(context.Background(),
		fig.WithRegion(conf.AwsRegion),
		fig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AwsAccessKeyID, conf.AwsSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %v", err)
	}

	return &mediaRepo{
		client: s3.NewFromConfig(cfg),
		bucket: conf.AwsBucket,
		region: conf.AwsRegion,
	}, nil
}

func (m *mediaRepo) UploadMedia(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to upload file to S3")
	}

	fileURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.bucket, m.region, key)
	log.Printf("File successfully uploaded to S3: %s", fileURL)
	return fileURL, nil
}

func (m *mediaRepo) DeleteMedia(ctx context.Context, fileURL string) error {
	key, err := m.keyFromURL(fileURL)
	if err != nil {
		return err
	}
	_, err = m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete file from S3")
	}
	return nil
}

func (m *mediaRepo) keyFromURL(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid media URL")
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}
