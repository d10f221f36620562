package gateway

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const DefaultS3Region = "us-west-1"

// S3BlobStore uploads public objects to S3 and serves them through a CDN
// prefix.
type S3BlobStore struct {
	bucket    string
	urlPrefix string
	uploader  *s3manager.Uploader
	svc       *s3.S3
}

func NewS3BlobStore(region, bucket, urlPrefix string) (*S3BlobStore, error) {
	if region == "" {
		region = DefaultS3Region
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3BlobStore{
		bucket:    bucket,
		urlPrefix: urlPrefix,
		uploader:  s3manager.NewUploader(sess),
		svc:       s3.New(sess),
	}, nil
}

func (s *S3BlobStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		ACL:         aws.String("public-read"),
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3BlobStore) DownloadUrl(ctx context.Context, path string) (string, error) {
	_, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return s.urlPrefix + path, nil
}
