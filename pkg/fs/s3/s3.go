// Package s3 implements the abstract filesystem on top of Amazon S3 or
// S3-compatible object storage.
//
// Object stores have no real directories: a "directory" here is any key
// prefix with at least one object beneath it. Synthetic directory statuses
// carry a zero modification time, which downstream freshness logic treats
// as "cannot be compared cheaply" and conservatively refreshes. There is
// also no execute bit, so Capabilities reports SupportsExecuteBit false and
// access probes degrade to read checks.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/skonto/filesource/pkg/fs"
)

// S3FileSystem implements fs.FileSystem against a single bucket.
//
// Thread safety: the underlying S3 client is safe for concurrent use, and
// the store holds no mutable state, so all methods may be called from
// multiple goroutines.
type S3FileSystem struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config configures an S3 filesystem.
type Config struct {
	// Client is the configured S3 client.
	Client *awss3.Client

	// Bucket is the bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix prepended to every object key.
	KeyPrefix string
}

// New creates an S3 filesystem and verifies bucket access.
func New(ctx context.Context, cfg Config) (*S3FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3FileSystem{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewFactory wraps the filesystem as an fs.Factory. S3 credentials identify
// the client, not individual callers, so every identity shares one instance.
func NewFactory(s *S3FileSystem) fs.Factory {
	return fs.FactoryFunc(func(ctx context.Context, identity string) (fs.FileSystem, error) {
		return s, nil
	})
}

func (s *S3FileSystem) Capabilities() fs.Capabilities {
	return fs.Capabilities{
		SupportsModTimes:   false,
		SupportsExecuteBit: false,
	}
}

// key maps a slash-separated path to an object key.
func (s *S3FileSystem) key(p string) string {
	k := strings.TrimPrefix(path.Clean(p), "/")
	if s.keyPrefix != "" {
		return strings.TrimSuffix(s.keyPrefix, "/") + "/" + k
	}
	return k
}

// pathOf is the inverse of key.
func (s *S3FileSystem) pathOf(key string) string {
	if s.keyPrefix != "" {
		key = strings.TrimPrefix(key, strings.TrimSuffix(s.keyPrefix, "/")+"/")
	}
	return "/" + key
}

func (s *S3FileSystem) StatusSafe(ctx context.Context, p string) (*fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.key(p)

	head, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		st := fs.FileStatus{
			Path: path.Clean(p),
			Size: aws.ToInt64(head.ContentLength),
		}
		if head.LastModified != nil {
			st.ModTime = *head.LastModified
		}
		return &st, nil
	}
	if !isNotFound(err) {
		return nil, mapAPIError("stat", p, err)
	}

	// No object at the exact key: probe for a prefix (directory).
	list, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, mapAPIError("stat", p, err)
	}
	if len(list.Contents) == 0 {
		return nil, nil
	}
	return &fs.FileStatus{Path: path.Clean(p), IsDir: true}, nil
}

func (s *S3FileSystem) Status(ctx context.Context, p string) (fs.FileStatus, error) {
	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return fs.FileStatus{}, err
	}
	if st == nil {
		return fs.FileStatus{}, fmt.Errorf("stat %s: %w", p, fs.ErrNotFound)
	}
	return *st, nil
}

func (s *S3FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

func (s *S3FileSystem) IsDirectory(ctx context.Context, p string) (bool, error) {
	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil && st.IsDir, nil
}

func (s *S3FileSystem) IsFile(ctx context.Context, p string) (bool, error) {
	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return false, err
	}
	return st != nil && !st.IsDir, nil
}

func (s *S3FileSystem) List(ctx context.Context, p string, recursive bool) ([]fs.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := s.key(p) + "/"

	if !recursive {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:    aws.String(s.bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		})
		if err != nil {
			return nil, mapAPIError("list", p, err)
		}

		var statuses []fs.FileStatus
		for _, cp := range out.CommonPrefixes {
			statuses = append(statuses, fs.FileStatus{
				Path:  s.pathOf(strings.TrimSuffix(aws.ToString(cp.Prefix), "/")),
				IsDir: true,
			})
		}
		for _, obj := range out.Contents {
			st := fs.FileStatus{
				Path: s.pathOf(aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				st.ModTime = *obj.LastModified
			}
			statuses = append(statuses, st)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
		return statuses, nil
	}

	// Recursive: one flat listing, then synthesize the intermediate
	// directory entries objects imply.
	dirs := make(map[string]bool)
	var files []fs.FileStatus

	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	paginator := awss3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapAPIError("list", p, err)
		}
		for _, obj := range page.Contents {
			objPath := s.pathOf(aws.ToString(obj.Key))
			st := fs.FileStatus{
				Path: objPath,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				st.ModTime = *obj.LastModified
			}
			files = append(files, st)

			for dir := path.Dir(objPath); len(dir) > len(path.Clean(p)); dir = path.Dir(dir) {
				dirs[dir] = true
			}
		}
	}

	statuses := make([]fs.FileStatus, 0, len(files)+len(dirs))
	for dir := range dirs {
		statuses = append(statuses, fs.FileStatus{Path: dir, IsDir: true})
	}
	statuses = append(statuses, files...)
	// Lexicographic order keeps parents ahead of their children.
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
	return statuses, nil
}

// Access probes readability. S3 has no execute bit and no per-user ACL
// surface at this layer, so write probes are rejected as unsupported and
// read probes are satisfied by a metadata round trip under the caller's
// credentials.
func (s *S3FileSystem) Access(ctx context.Context, p string, mode fs.AccessMode) error {
	if mode&fs.AccessWrite != 0 {
		return fmt.Errorf("access %s: write probes: %w", p, fs.ErrNotSupported)
	}

	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("access %s: %w", p, fs.ErrNotFound)
	}
	return nil
}

func (s *S3FileSystem) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, err := s.StatusSafe(ctx, from)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotFound)
	}

	if !st.IsDir {
		return s.moveObject(ctx, s.key(from), s.key(to))
	}

	// Directory rename is a copy+delete per object under the prefix.
	fromPrefix := s.key(from) + "/"
	toPrefix := s.key(to) + "/"
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fromPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapAPIError("rename", from, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if err := s.moveObject(ctx, key, toPrefix+key[len(fromPrefix):]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3FileSystem) moveObject(ctx context.Context, fromKey, toKey string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + fromKey),
		Key:        aws.String(toKey),
	})
	if err != nil {
		return mapAPIError("rename", fromKey, err)
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fromKey),
	})
	if err != nil {
		return mapAPIError("rename", fromKey, err)
	}
	return nil
}

func (s *S3FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st, err := s.StatusSafe(ctx, p)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("delete %s: %w", p, fs.ErrNotFound)
	}

	if !st.IsDir {
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(p)),
		})
		if err != nil {
			return mapAPIError("delete", p, err)
		}
		return nil
	}

	if !recursive {
		return fmt.Errorf("delete %s: directory delete requires recursive", p)
	}

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(p) + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapAPIError("delete", p, err)
		}
		for _, obj := range page.Contents {
			_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return mapAPIError("delete", p, err)
			}
		}
	}
	return nil
}

func (s *S3FileSystem) Create(ctx context.Context, p string, perm os.FileMode) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Permission bits have no S3 representation; they are accepted and
	// dropped so callers can stay backend-agnostic.
	return &s3Writer{
		fsys: s,
		ctx:  ctx,
		key:  s.key(p),
		buf:  &bytes.Buffer{},
	}, nil
}

// s3Writer buffers the payload and uploads it in one PutObject on Close.
// View definition files are tiny, so multipart upload is not worth the
// bookkeeping here.
type s3Writer struct {
	fsys *S3FileSystem
	ctx  context.Context
	key  string
	buf  *bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	_, err := w.fsys.client.PutObject(w.ctx, &awss3.PutObjectInput{
		Bucket: aws.String(w.fsys.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return mapAPIError("create", w.key, err)
	}
	return nil
}

func (s *S3FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, mapAPIError("open", p, err)
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// mapAPIError converts AWS SDK failures onto the fs sentinels.
func mapAPIError(op, p string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "403":
			return fmt.Errorf("%s %s: %w", op, p, fs.ErrAccessDenied)
		case "NotFound", "NoSuchKey", "404":
			return fmt.Errorf("%s %s: %w", op, p, fs.ErrNotFound)
		}
	}
	return fmt.Errorf("%s %s: %w", op, p, err)
}
