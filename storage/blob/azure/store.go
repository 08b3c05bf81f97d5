// Package azure stores blobs in an Azure Blob Storage container reached through a SAS URL.
package azure

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
)

// HTTPClient is the subset of *http.Client the store uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type store struct {
	client    HTTPClient
	container *url.URL
	prefix    string
}

// Open creates the store from a container SAS URL (`https://<account>.blob.core.windows.net/<container>?<sas>`).
func Open(cfg core.BlobConfig, client HTTPClient) (core.BlobStore, error) {
	if cfg.SASURL == "" {
		return nil, errors.New("azure: missing sas url")
	}
	u, err := url.Parse(cfg.SASURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing azure sas url")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &store{client: client, container: u, prefix: cfg.Prefix}, nil
}

func (s *store) blobURL(key string) string {
	u := *s.container
	u.Path = path.Join(u.Path, s.prefix, key)
	return u.String()
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.blobURL(key), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating azure request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "getting azure blob %s", key)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.ErrBlobNotFound
	case resp.StatusCode >= 300:
		return nil, errors.Errorf("getting azure blob %s: status %d", key, resp.StatusCode)
	}
	data, err := ioutil.ReadAll(resp.Body)
	return data, errors.Wrapf(err, "reading azure blob %s", key)
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.blobURL(key), bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "creating azure request")
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "putting azure blob %s", key)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Errorf("putting azure blob %s: status %d", key, resp.StatusCode)
	}
	return nil
}
