// Package storage archives finished run outputs to a blob store.
// Backends live in the gcs and local subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// BlobStore uploads one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, objectPath, contentType string, metadata map[string]string, r io.Reader) (string, error)
}

// Digester computes a content digest while reading.
type Digester interface {
	Digest(r io.Reader) (string, int64, error)
}

// Archived describes one uploaded output file.
type Archived struct {
	File   string `json:"file"`
	URI    string `json:"uri"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Archiver uploads output files under <prefix>/<run id>/<file name>.
type Archiver struct {
	store    BlobStore
	digester Digester
	prefix   string
	logger   *zap.Logger
}

// NewArchiver builds an Archiver. The prefix may be empty.
func NewArchiver(store BlobStore, digester Digester, prefix string, logger *zap.Logger) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if digester == nil {
		return nil, errors.New("digester is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:    store,
		digester: digester,
		prefix:   strings.Trim(prefix, "/"),
		logger:   logger,
	}, nil
}

// ObjectPath returns the object key used for file within a run.
func (a *Archiver) ObjectPath(runID, file string) string {
	name := filepath.Base(file)
	if a.prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(a.prefix, runID, name)
}

// Archive uploads every file. It stops at the first failure and returns what
// was uploaded so far.
func (a *Archiver) Archive(ctx context.Context, runID string, files []string) ([]Archived, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("run id is required")
	}
	out := make([]Archived, 0, len(files))
	for _, file := range files {
		item, err := a.archiveFile(ctx, runID, file)
		if err != nil {
			return out, err
		}
		a.logger.Info("Archived output file",
			zap.String("file", item.File),
			zap.String("uri", item.URI),
			zap.Int64("bytes", item.Bytes),
		)
		out = append(out, item)
	}
	return out, nil
}

func (a *Archiver) archiveFile(ctx context.Context, runID, file string) (Archived, error) {
	sum, size, err := a.digestFile(file)
	if err != nil {
		return Archived{}, err
	}
	f, err := os.Open(file) // #nosec G304 -- paths come from the writer's own output files.
	if err != nil {
		return Archived{}, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() {
		_ = f.Close()
	}()

	objectPath := a.ObjectPath(runID, file)
	meta := map[string]string{"run_id": runID, "sha256": sum}
	uri, err := a.store.PutObject(ctx, objectPath, ContentType(file), meta, f)
	if err != nil {
		return Archived{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return Archived{File: filepath.Base(file), URI: uri, SHA256: sum, Bytes: size}, nil
}

func (a *Archiver) digestFile(file string) (string, int64, error) {
	f, err := os.Open(file) // #nosec G304 -- paths come from the writer's own output files.
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", file, err)
	}
	defer func() {
		_ = f.Close()
	}()
	sum, size, err := a.digester.Digest(f)
	if err != nil {
		return "", 0, fmt.Errorf("digest %s: %w", file, err)
	}
	return sum, size, nil
}

// ContentType maps the writer's output extensions to MIME types.
func ContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".txt", ".log":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
