package gateway

import (
	"context"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	firebaseDownloadTokensKey = "firebaseStorageDownloadTokens"
	firebaseDownloadUrlFormat = "https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s"
)

// FirebaseBlobStore uploads into the default bucket of the Firebase project
// and hands out token based download urls.
type FirebaseBlobStore struct {
	bucket *gcs.BucketHandle
	name   string
}

func NewFirebaseBlobStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseBlobStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to get firebase storage client")
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "fail to get storage bucket")
	}
	return &FirebaseBlobStore{bucket: bucket, name: bucketName}, nil
}

func (s *FirebaseBlobStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{firebaseDownloadTokensKey: uuid.New().String()}

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return errors.Wrapf(err, "fail to upload %s", path)
	}
	return w.Close()
}

func (s *FirebaseBlobStore) DownloadUrl(ctx context.Context, path string) (string, error) {
	attrs, err := s.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	token := attrs.Metadata[firebaseDownloadTokensKey]
	if token == "" {
		return "", errors.Errorf("object %s has no download token", path)
	}
	return fmt.Sprintf(firebaseDownloadUrlFormat, s.name, url.PathEscape(path), token), nil
}
