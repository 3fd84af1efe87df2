package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUploadTooLarge   = errors.New("upload exceeds size limit")
	ErrIncompleteUpload = errors.New("upload could not be read")
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// UploadStore stages uploaded files on local disk under generated names so
// that collaborators can read them by path.
type UploadStore struct {
	baseDir  string
	maxBytes int64
}

func NewUploadStore(dir string, maxBytes int64) (*UploadStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", baseDir, err)
	}

	return &UploadStore{baseDir: baseDir, maxBytes: maxBytes}, nil
}

func (s *UploadStore) Dir() string {
	return s.baseDir
}

// StagedFile is an upload written to disk. Remove must be called once the
// file is no longer needed.
type StagedFile struct {
	Path     string
	Filename string
	Size     int64
}

// Remove deletes the staged file. Missing files are not an error.
func (f *StagedFile) Remove() {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("error removing staged upload", "path", f.Path, "error", err)
	}
}

// Stage copies data to a new file named by a random id. The client filename
// only contributes its extension, so concurrent uploads never share a path.
func (s *UploadStore) Stage(ctx context.Context, filename string, data io.Reader) (*StagedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.baseDir, uuid.NewString()+SafeExt(filename))

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	staged := &StagedFile{Path: path, Filename: filename}

	src := &recordingReader{r: data}
	var limited io.Reader = src
	if s.maxBytes > 0 {
		limited = io.LimitReader(src, s.maxBytes+1)
	}

	n, err := io.Copy(dst, limited)
	closeErr := dst.Close()
	staged.Size = n

	if src.err != nil {
		staged.Remove()
		return nil, fmt.Errorf("%w: %v", ErrIncompleteUpload, src.err)
	}
	if err != nil {
		staged.Remove()
		return nil, fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if closeErr != nil {
		staged.Remove()
		return nil, fmt.Errorf("failed to close file %s: %w", path, closeErr)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		staged.Remove()
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, s.maxBytes)
	}

	return staged, nil
}

// recordingReader remembers the first non-EOF error from the client stream
// so it can be told apart from disk errors raised by io.Copy.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

// SafeExt returns the lowercased extension of a client supplied filename, or
// an empty string if it contains anything unexpected.
func SafeExt(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
