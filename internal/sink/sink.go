// Package sink stores generated artifacts in a local directory or a GCS
// bucket prefix.
package sink

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Sink receives output files by relative name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	// Location describes where files end up, for logging.
	Location() string
}

// Open returns a GCS sink for gs:// targets and a directory sink otherwise.
func Open(ctx context.Context, target string) (Sink, error) {
	if strings.HasPrefix(target, "gs://") {
		bucket, prefix, err := ParseGCSURI(target)
		if err != nil {
			return nil, err
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
	}
	return &Dir{Root: target}, nil
}

// ParseGCSURI splits gs://bucket/prefix into its parts. The prefix may be
// empty.
func ParseGCSURI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// Dir writes files below a local root directory.
type Dir struct {
	Root string
}

// Put writes data to Root/name, creating parent directories. The file is
// replaced by rename.
func (d *Dir) Put(_ context.Context, name string, data []byte) error {
	dst := filepath.Join(d.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", dst, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", dst, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("replace %q: %w", dst, err)
	}
	return nil
}

func (d *Dir) Location() string { return d.Root }

// GCS writes objects below a bucket prefix. It assumes Application Default
// Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func (g *GCS) object(name string) string {
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}

// Put uploads data as a single object.
func (g *GCS) Put(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := g.object(name)
	w := g.client.Bucket(g.bucket).Object(obj).NewWriter(ctx)
	w.ContentType = contentType(name)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", g.bucket, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload gs://%s/%s: %w", g.bucket, obj, err)
	}
	return nil
}

func (g *GCS) Location() string {
	return "gs://" + path.Join(g.bucket, g.prefix)
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	}
	return "application/octet-stream"
}
