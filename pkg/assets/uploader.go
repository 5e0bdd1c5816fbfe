// Package assets uploads exported files to content-addressed storage.
//
// Every file is stored under <prefix>/<storageKey>, where the storage key is
// derived from the file contents. Files that are already present are not
// uploaded again.
package assets

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/holon-run/ota/pkg/export"
	holonlog "github.com/holon-run/ota/pkg/log"
)

// DefaultConcurrency bounds parallel uploads
const DefaultConcurrency = 8

// Result summarizes an upload run.
type Result struct {
	// Uploaded is the number of files written
	Uploaded int `json:"uploaded"`
	// AlreadyPresent is the number of files skipped because storage had them
	AlreadyPresent int `json:"alreadyPresent"`
}

// Total returns the number of distinct files handled.
func (r *Result) Total() int {
	return r.Uploaded + r.AlreadyPresent
}

// Uploader writes assets to an S3 bucket.
type Uploader struct {
	client      S3API
	bucket      string
	prefix      string
	concurrency int
}

// UploaderOption configures an Uploader
type UploaderOption func(*Uploader)

// WithConcurrency overrides DefaultConcurrency
func WithConcurrency(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

// NewUploader returns an uploader for bucket, storing keys under prefix.
func NewUploader(client S3API, bucket, prefix string, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		client:      client,
		bucket:      bucket,
		prefix:      prefix,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Key returns the object key for an asset.
func (u *Uploader) Key(a export.Asset) string {
	if u.prefix == "" {
		return a.StorageKey
	}
	return path.Join(u.prefix, a.StorageKey)
}

// Upload stores every asset that is not already present. Assets sharing a
// storage key are uploaded once. The first failure cancels the remaining
// uploads and is returned.
func (u *Uploader) Upload(ctx context.Context, assets []export.Asset) (*Result, error) {
	seen := make(map[string]bool, len(assets))
	unique := make([]export.Asset, 0, len(assets))
	for _, a := range assets {
		if seen[a.StorageKey] {
			continue
		}
		seen[a.StorageKey] = true
		unique = append(unique, a)
	}

	var uploaded, present atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, a := range unique {
		g.Go(func() error {
			wrote, err := u.uploadOne(gctx, a)
			if err != nil {
				return err
			}
			if wrote {
				uploaded.Add(1)
			} else {
				present.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Uploaded: int(uploaded.Load()), AlreadyPresent: int(present.Load())}
	holonlog.Info("assets uploaded", "uploaded", result.Uploaded, "already_present", result.AlreadyPresent)
	return result, nil
}

func (u *Uploader) uploadOne(ctx context.Context, a export.Asset) (bool, error) {
	key := u.Key(a)

	_, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		holonlog.Debug("asset already present", "key", key)
		return false, nil
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("failed to check asset %s: %w", key, err)
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return false, fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(a.ContentType),
	}
	if a.Size > 0 {
		input.ContentLength = aws.Int64(a.Size)
	}
	if _, err := u.client.PutObject(ctx, input); err != nil {
		return false, fmt.Errorf("failed to upload asset %s: %w", key, err)
	}
	holonlog.Debug("asset uploaded", "key", key, "path", a.Path)
	return true, nil
}
