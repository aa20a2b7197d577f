package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/storage"
)

// Archiver keeps a copy of each rendered export in the object store.
type Archiver struct {
	Store storage.ObjectStore
	NewID func() string
	Now   func() time.Time
}

func NewArchiver(store storage.ObjectStore) *Archiver {
	return &Archiver{
		Store: store,
		NewID: func() string { return uuid.NewString() },
		Now:   time.Now,
	}
}

func (a *Archiver) Archive(ctx context.Context, sessionID string, format Format, data []byte) (storage.ObjectInfo, error) {
	if a == nil || a.Store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("export archive store is not configured")
	}
	key, err := storage.BuildExportPath(sessionID, a.NewID(), format.Extension(), a.Now())
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("build export key: %w", err)
	}
	info, err := a.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: format.ContentType()})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("archive export: %w", err)
	}
	info.Key = key
	return info, nil
}

// Open returns a previously archived export. Only keys in the export layout
// are served.
func (a *Archiver) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if a == nil || a.Store == nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("export archive store is not configured")
	}
	if !storage.IsExportPath(key) {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	info, err := a.Store.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	reader, err := a.Store.Get(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	return reader, info, nil
}

func (a *Archiver) Remove(ctx context.Context, key string) error {
	if a == nil || a.Store == nil {
		return fmt.Errorf("export archive store is not configured")
	}
	if !storage.IsExportPath(key) {
		return storage.ErrObjectNotFound
	}
	return a.Store.Delete(ctx, key)
}
