package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/askdb/askdb/internal/storage"
)

func TestPutUsesPrefixAndNormalizedKey(t *testing.T) {
	fake := &fakeBucket{}
	store, err := newStore("askdb-exports", "/askdb/prod/", fake)
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/exports/date=2026-01-01/s1/e1.csv", bytes.NewBufferString("a,b\n"), 4, storage.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastBucket != "askdb-exports" {
		t.Fatalf("bucket = %q", fake.lastBucket)
	}
	if fake.lastKey != "askdb/prod/exports/date=2026-01-01/s1/e1.csv" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if fake.lastContentType != "text/csv" {
		t.Fatalf("content type = %q", fake.lastContentType)
	}
	if info.Size != 4 || info.ETag != "etag-1" {
		t.Fatalf("info = %+v", info)
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	store, _ := newStore("bucket-a", "", &fakeBucket{})
	for _, key := range []string{"../secrets.txt", "..", "", "   "} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected validation error", key)
		}
	}
}

func TestGetReadsThroughOpener(t *testing.T) {
	store, _ := newStore("bucket-a", "pfx", &fakeBucket{})
	var opened string
	store.open = func(_ context.Context, key string) (io.ReadCloser, error) {
		opened = key
		return io.NopCloser(strings.NewReader("payload")), nil
	}
	reader, err := store.Get(context.Background(), "exports/a.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = reader.Close() }()
	body, _ := io.ReadAll(reader)
	if string(body) != "payload" || opened != "pfx/exports/a.csv" {
		t.Fatalf("Get() = %q from %q", body, opened)
	}
}

func TestGetMapsMissingObject(t *testing.T) {
	store, _ := newStore("bucket-a", "", &fakeBucket{})
	store.open = func(context.Context, string) (io.ReadCloser, error) {
		return nil, classify(minio.ErrorResponse{Code: "NoSuchKey"})
	}
	if _, err := store.Get(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStatMapsMissingObject(t *testing.T) {
	store, _ := newStore("bucket-a", "", &fakeBucket{statErr: minio.ErrorResponse{Code: "NoSuchKey"}})
	if _, err := store.Stat(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStatReturnsObjectInfo(t *testing.T) {
	modified := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store, _ := newStore("bucket-a", "", &fakeBucket{statInfo: minio.ObjectInfo{Size: 9, ContentType: "text/csv", LastModified: modified}})
	info, err := store.Stat(context.Background(), "exports/a.csv")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Key != "exports/a.csv" || info.Size != 9 || info.ContentType != "text/csv" || !info.LastModified.Equal(modified) {
		t.Fatalf("info = %+v", info)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeBucket{bucketExists: false}
	store, _ := newStore("bucket-a", "", fake)
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeRegion != "us-east-1" {
		t.Fatalf("MakeBucket region = %q", fake.madeRegion)
	}
}

func TestCheckRequiresExistingBucket(t *testing.T) {
	store, _ := newStore("bucket-a", "", &fakeBucket{bucketExists: false})
	if err := store.Check(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
	store, _ = newStore("bucket-a", "", &fakeBucket{bucketExists: true})
	if err := store.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	store, _ := newStore("bucket-a", "", &fakeBucket{removeErr: minio.ErrorResponse{Code: "NoSuchKey"}})
	if err := store.Delete(context.Background(), "missing/file.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	store, _ = newStore("bucket-a", "", &fakeBucket{removeErr: errors.New("denied")})
	if err := store.Delete(context.Background(), "file.csv"); err == nil {
		t.Fatal("expected delete error")
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil || endpoint != "minio.example.com" || !secure {
		t.Fatalf("parseEndpoint(https) = %q, %v, %v", endpoint, secure, err)
	}
	endpoint, secure, err = parseEndpoint("http://localhost:9000", false)
	if err != nil || endpoint != "localhost:9000" || secure {
		t.Fatalf("parseEndpoint(http) = %q, %v, %v", endpoint, secure, err)
	}
	if _, _, err := parseEndpoint(" ", false); err == nil {
		t.Fatal("expected empty endpoint error")
	}
}

type fakeBucket struct {
	lastBucket      string
	lastKey         string
	lastContentType string
	bucketExists    bool
	madeRegion      string
	statInfo        minio.ObjectInfo
	statErr         error
	removeErr       error
}

func (f *fakeBucket) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.lastBucket = bucket
	f.lastKey = key
	f.lastContentType = opts.ContentType
	_, _ = io.Copy(io.Discard, reader)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeBucket) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not used")
}

func (f *fakeBucket) StatObject(_ context.Context, _, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.statErr != nil {
		return minio.ObjectInfo{}, f.statErr
	}
	info := f.statInfo
	info.Key = key
	return info, nil
}

func (f *fakeBucket) RemoveObject(context.Context, string, string, minio.RemoveObjectOptions) error {
	return f.removeErr
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeBucket) MakeBucket(_ context.Context, _ string, opts minio.MakeBucketOptions) error {
	f.madeRegion = opts.Region
	return nil
}
