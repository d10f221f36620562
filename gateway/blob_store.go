package gateway

import (
	"context"
	"io"
)

// BlobStore is the boundary to the vendor object storage.
type BlobStore interface {
	// Put uploads body under path. It returns once the upload is complete.
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
	// DownloadUrl resolves the public url of an uploaded object. It returns
	// ErrNotFound if nothing was uploaded under path.
	DownloadUrl(ctx context.Context, path string) (string, error)
}

// PostPhotoPath is where the photo of a post is uploaded.
func PostPhotoPath(postId string) string {
	return "posts/" + postId + ".jpg"
}
