// Package s3 stores blobs in an AWS S3 (or S3 compatible) bucket.
package s3

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
)

type store struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// Open creates the S3 store. Credentials come from the usual AWS environment.
// cfg.Endpoint targets S3 compatible services (path style addressing).
func Open(cfg core.BlobConfig) (core.BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: missing bucket")
	}
	config := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		config.Endpoint = aws.String(cfg.Endpoint)
		config.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &store{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (s *store) key(key string) *string {
	return aws.String(path.Join(s.prefix, key))
}

func isNotFound(err error) bool {
	if aErr, ok := err.(awserr.RequestFailure); ok && aErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if aErr, ok := err.(awserr.Error); ok {
		return aErr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, core.ErrBlobNotFound
		}
		return nil, errors.Wrapf(err, "getting s3 object %s", key)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer out.Body.Close()

	data, err := ioutil.ReadAll(out.Body)
	return data, errors.Wrapf(err, "reading s3 object %s", key)
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.key(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "uploading s3 object %s", key)
}
