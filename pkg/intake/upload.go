package intake

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jdziat/recipe-ingest/pkg/security"
)

// Uploader writes uploaded documents into the inbox.
type Uploader struct {
	dir     string
	maxSize int64

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewUploader creates an Uploader that writes into dm's inbox.
func NewUploader(dm *DirectoryManager) *Uploader {
	return &Uploader{
		dir:     dm.Inbox(),
		maxSize: security.MaxUploadSize,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Store validates and writes r under "<ulid>_<sanitized name>". The file is
// written under a hidden temporary name first so the watcher never sees a
// partial document.
func (u *Uploader) Store(name string, r io.Reader) (string, error) {
	clean, err := security.SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	if err := security.ValidateUpload(clean, 0); err != nil {
		return "", err
	}

	u.mu.Lock()
	id := ulid.MustNew(ulid.Now(), u.entropy).String()
	u.mu.Unlock()

	// The ulid prefix must not push the name past the filesystem limit.
	clean = security.TruncateFilename(clean, security.MaxFilenameLength-len(id)-1)
	final := filepath.Join(u.dir, id+"_"+clean)
	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, u.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	if err := security.ValidateUpload(clean, n); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", err
	}
	return final, nil
}
