package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrArchiveTooLarge is returned when the compressed archive would exceed
// Options.MaxBytes.
var ErrArchiveTooLarge = errors.New("archive exceeds size limit")

type Options struct {
	Excludes []string
	// MaxBytes caps the compressed archive size. Zero means no limit.
	MaxBytes int64
	// TempDir defaults to os.TempDir().
	TempDir string
}

type Result struct {
	Path  string
	Files int
	Bytes int64
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%d files, %s)", filepath.Base(r.Path), r.Files, humanize.Bytes(uint64(r.Bytes)))
}

type limitWriter struct {
	w       io.Writer
	n       int64
	max     int64
	tripped bool
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.max > 0 && l.n+int64(len(p)) > l.max {
		l.tripped = true
		return 0, ErrArchiveTooLarge
	}
	n, err := l.w.Write(p)
	l.n += int64(n)
	return n, err
}

// ZipDir writes the regular files under dir into a new zip in the temp
// directory. Excluded paths, symlinks and other special files are skipped.
// The caller owns the returned file.
func ZipDir(dir string, opts Options) (Result, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%s is not a directory", root)
	}

	out, err := os.CreateTemp(opts.TempDir, archiveBaseName(root)+"-*.zip")
	if err != nil {
		return Result{}, fmt.Errorf("create archive: %w", err)
	}
	result := Result{Path: out.Name()}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(out.Name())
	}

	selfPath, _ := filepath.Abs(out.Name())
	excludes := compileExcludes(opts.Excludes)
	lw := &limitWriter{w: out, max: opts.MaxBytes}
	zw := zip.NewWriter(lw)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if excludes.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if path == selfPath || !d.Type().IsRegular() || !safeMemberName(rel) {
			return nil
		}
		if excludes.excluded(rel) {
			return nil
		}
		if err := addFile(zw, path, rel); err != nil {
			return err
		}
		result.Files++
		return nil
	})
	if walkErr == nil {
		walkErr = zw.Close()
	}
	if walkErr != nil {
		cleanup()
		if lw.tripped || errors.Is(walkErr, ErrArchiveTooLarge) {
			return Result{}, fmt.Errorf("%w: limit %s", ErrArchiveTooLarge, humanize.Bytes(uint64(opts.MaxBytes)))
		}
		return Result{}, fmt.Errorf("zip %s: %w", root, walkErr)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return Result{}, fmt.Errorf("close archive: %w", err)
	}
	result.Bytes = lw.n
	return result, nil
}

func addFile(zw *zip.Writer, path, rel string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = rel
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func archiveBaseName(root string) string {
	name := strings.TrimSpace(filepath.Base(root))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "project"
	}
	return name
}
