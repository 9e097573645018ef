package intake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Folder is one of the staging area's subdirectories.
type Folder string

const (
	FolderInbox     Folder = "inbox"
	FolderProcessed Folder = "processed"
	FolderFailed    Folder = "failed"
	FolderDLQ       Folder = "dlq"
)

// DefaultRetention is how long archived documents are kept before cleanup.
const DefaultRetention = 30 * 24 * time.Hour

// DirectoryManager manages the staging directories under a base path.
type DirectoryManager struct {
	base   string
	logger *slog.Logger
}

// NewDirectoryManager creates a manager rooted at base. Call Setup before use.
func NewDirectoryManager(base string, logger *slog.Logger) (*DirectoryManager, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("intake: resolve %s: %w", base, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryManager{base: abs, logger: logger}, nil
}

// Setup creates every staging directory.
func (d *DirectoryManager) Setup() error {
	for _, f := range []Folder{FolderInbox, FolderProcessed, FolderFailed, FolderDLQ} {
		if err := os.MkdirAll(d.Path(f), 0o755); err != nil {
			return fmt.Errorf("intake: create %s: %w", f, err)
		}
	}
	return nil
}

// Path returns the absolute path of a folder.
func (d *DirectoryManager) Path(f Folder) string {
	return filepath.Join(d.base, string(f))
}

// Inbox returns the watched directory.
func (d *DirectoryManager) Inbox() string {
	return d.Path(FolderInbox)
}

// FolderFor maps a terminal status to its archive folder.
func FolderFor(status core.JobStatus) (Folder, bool) {
	switch status {
	case core.StatusCompleted, core.StatusCompletedDuplicate:
		return FolderProcessed, true
	case core.StatusFailed, core.StatusRejected:
		return FolderFailed, true
	case core.StatusDLQ:
		return FolderDLQ, true
	}
	return "", false
}

// Archive moves a document into the folder for status and returns its new path.
func (d *DirectoryManager) Archive(path string, status core.JobStatus) (string, error) {
	folder, ok := FolderFor(status)
	if !ok {
		return path, nil
	}
	return d.Move(path, folder)
}

// Move relocates a file into folder. An existing file of the same name gets a
// numeric suffix ("soup_1.txt") instead of being overwritten.
func (d *DirectoryManager) Move(path string, folder Folder) (string, error) {
	dir := d.Path(folder)
	if filepath.Dir(path) == dir {
		return path, nil
	}
	dest := uniquePath(dir, filepath.Base(path))

	if err := os.Rename(path, dest); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return "", err
		}
		// Staging folders on different filesystems.
		if err := copyFile(path, dest); err != nil {
			return "", err
		}
		if err := os.Remove(path); err != nil {
			return "", err
		}
	}
	d.logger.Info("moved document", "from", path, "to", dest)
	return dest, nil
}

func uniquePath(dir, name string) string {
	dest := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			return dest
		}
		suffix := fmt.Sprintf("_%d%s", i, ext)
		dest = filepath.Join(dir, security.TruncateFilename(stem, security.MaxFilenameLength-len(suffix))+suffix)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// Cleanup deletes files in processed/ and failed/ older than retention.
// dlq/ is left for an operator.
func (d *DirectoryManager) Cleanup(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	removed := 0
	var errs []error

	for _, f := range []Folder{FolderProcessed, FolderFailed} {
		entries, err := os.ReadDir(d.Path(f))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(d.Path(f), e.Name())
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		d.logger.Info("cleaned up archived documents", "removed", removed, "retention", retention)
	}
	return removed, errors.Join(errs...)
}
