package gateway

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
)

const FakeBlobUrlPrefix = "https://fake-storage.local/"

// Operations of FakeBlobStore that can be made to fail.
const (
	OpPut         = "put"
	OpDownloadUrl = "download_url"
)

type FakeBlobStore struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	failures map[string]error

	// OnPut, when set, is called after an object is stored.
	OnPut func(path string)
}

func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{
		objects:  make(map[string][]byte),
		failures: make(map[string]error),
	}
}

func (f *FakeBlobStore) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *FakeBlobStore) failure(op string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.failures[op]
}

// Object returns the stored bytes of path.
func (f *FakeBlobStore) Object(path string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.objects[path]
	return b, ok
}

func (f *FakeBlobStore) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.objects)
}

func (f *FakeBlobStore) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	if err := f.failure(OpPut); err != nil {
		return err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "fail to read upload body")
	}
	f.mu.Lock()
	f.objects[path] = b
	f.mu.Unlock()

	if f.OnPut != nil {
		f.OnPut(path)
	}
	return nil
}

func (f *FakeBlobStore) DownloadUrl(ctx context.Context, path string) (string, error) {
	if err := f.failure(OpDownloadUrl); err != nil {
		return "", err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.objects[path]; !ok {
		return "", ErrNotFound
	}
	return FakeBlobUrlPrefix + path, nil
}
