// Package artifact writes backup artifacts through a temp file that is only
// renamed into place once every pipeline stage has finished.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperr "github.com/fgeck/dbbackup/internal/errors"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

const partialSuffix = ".partial"

// Writer is a single-use artifact sink. Callers must end with Commit or Abort.
type Writer struct {
	fs       afero.Fs
	path     string
	tmpPath  string
	file     afero.File
	gz       *gzip.Writer
	out      io.Writer
	finished bool
}

// Create opens a temp file next to path. When compress is set, bytes written
// go through a gzip stage first.
func Create(fs afero.Fs, path string, compress bool) (*Writer, error) {
	tmpPath := TempPath(path)

	file, err := fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, apperr.NewStreamError("create", tmpPath, err)
	}

	w := &Writer{
		fs:      fs,
		path:    path,
		tmpPath: tmpPath,
		file:    file,
		out:     file,
	}
	if compress {
		w.gz = gzip.NewWriter(file)
		w.out = w.gz
	}

	return w, nil
}

// TempPath returns a unique hidden sibling of path used while writing.
func TempPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", base, uuid.NewString(), partialSuffix))
}

// Path returns the final artifact path.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.out.Write(p)
	if err != nil {
		op := "write"
		if w.gz != nil {
			op = "compress"
		}
		return n, apperr.NewStreamError(op, w.tmpPath, err)
	}
	return n, nil
}

// Commit flushes every stage, syncs the temp file and renames it into place.
// It returns the size of the artifact on disk.
func (w *Writer) Commit() (int64, error) {
	if w.finished {
		return 0, fmt.Errorf("artifact %s already finished", w.path)
	}

	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return 0, multierr.Append(apperr.NewStreamError("compress", w.tmpPath, err), w.Abort())
		}
	}
	if err := w.file.Sync(); err != nil {
		return 0, multierr.Append(apperr.NewStreamError("sync", w.tmpPath, err), w.Abort())
	}

	w.finished = true
	if err := w.file.Close(); err != nil {
		return 0, multierr.Append(apperr.NewStreamError("close", w.tmpPath, err), w.fs.Remove(w.tmpPath))
	}
	if err := w.fs.Rename(w.tmpPath, w.path); err != nil {
		return 0, multierr.Append(apperr.NewStreamError("rename", w.path, err), w.fs.Remove(w.tmpPath))
	}

	info, err := w.fs.Stat(w.path)
	if err != nil {
		return 0, apperr.NewStreamError("stat", w.path, err)
	}
	return info.Size(), nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.finished {
		return nil
	}
	w.finished = true

	err := w.file.Close()
	if rmErr := w.fs.Remove(w.tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = multierr.Append(err, rmErr)
	}
	return err
}

// Copy streams src into a new artifact at path and commits it. On any error
// the temp file is removed and nothing appears at path.
func Copy(ctx context.Context, fs afero.Fs, path string, src io.Reader, compress bool) (int64, error) {
	w, err := Create(fs, path, compress)
	if err != nil {
		return 0, err
	}
	defer func() { _ = w.Abort() }()

	if _, err := io.Copy(w, &contextReader{ctx: ctx, r: src}); err != nil {
		var streamErr *apperr.StreamError
		if errors.As(err, &streamErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, apperr.NewStreamError("read", "", err)
	}

	return w.Commit()
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
