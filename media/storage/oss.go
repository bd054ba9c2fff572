package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// OSSConfig holds Aliyun OSS credentials.
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id" yaml:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret" json:"-" yaml:"access_key_secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// ossBucket is the part of *oss.Bucket the store uses.
type ossBucket interface {
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	GetObject(objectKey string, options ...oss.Option) (io.ReadCloser, error)
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
}

// OSSStore keeps blobs as objects in an Aliyun OSS bucket.
type OSSStore struct {
	bucket ossBucket
	prefix string
}

// NewOSSStore connects to the configured bucket.
// Endpoint: oss-cn-hangzhou.aliyuncs.com
func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}
	return newOSSStore(bucket, cfg.Prefix), nil
}

func newOSSStore(bucket ossBucket, prefix string) *OSSStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &OSSStore{bucket: bucket, prefix: prefix}
}

func (s *OSSStore) objectKey(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

func (s *OSSStore) Exists(ctx context.Context, p string) (bool, error) {
	key, err := s.objectKey(p)
	if err != nil {
		return false, err
	}
	ok, err := s.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, apperrors.NewStorage("stat", p, err)
	}
	return ok, nil
}

func (s *OSSStore) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := s.objectKey(p)
	if err != nil {
		return nil, err
	}

	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isOSSNotFound(err) {
			return nil, notFound(p)
		}
		return nil, apperrors.NewStorage("read", p, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.NewStorage("read", p, err)
	}
	return data, nil
}

func (s *OSSStore) Write(ctx context.Context, p string, data []byte) error {
	key, err := s.objectKey(p)
	if err != nil {
		return err
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(data), oss.WithContext(ctx)); err != nil {
		return apperrors.NewStorage("write", p, err)
	}
	return nil
}

func (s *OSSStore) Delete(ctx context.Context, p string) error {
	key, err := s.objectKey(p)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil && !isOSSNotFound(err) {
		return apperrors.NewStorage("delete", p, err)
	}
	return nil
}

func (s *OSSStore) Name() string {
	return "oss"
}

func isOSSNotFound(err error) bool {
	var svcErr oss.ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound || svcErr.Code == "NoSuchKey"
	}
	return false
}
