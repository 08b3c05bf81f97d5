// Package gcs stores blobs in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/mdii/portal/core"
)

const opTimeout = time.Minute

type store struct {
	client *storage.Client
	bucket string
	prefix string
}

// Open connects to GCS with the default credentials, or to an emulator when cfg.EmulatorHost is set.
func Open(ctx context.Context, cfg core.BlobConfig) (core.BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: missing bucket")
	}

	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating gcs client")
	}
	return &store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key))
}

// openError maps a missing object to core.ErrBlobNotFound.
func openError(err error, key string) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.ErrBlobNotFound
	}
	return errors.Wrapf(err, "opening gcs object %s", key)
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		return nil, openError(err, key)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	return data, errors.Wrapf(err, "reading gcs object %s", key)
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "writing gcs object %s", key)
	}
	return errors.Wrapf(w.Close(), "closing gcs object %s", key)
}
