package notice

import (
	"SmartNotice/internal/config"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AttachmentStore keeps uploaded files under a single directory. Stored names
// are prefixed with a uuid so uploads never collide.
type AttachmentStore struct {
	dir string
}

var _ FileStore = (*AttachmentStore)(nil)

func NewAttachmentStore(cfg *config.Config) (*AttachmentStore, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &AttachmentStore{dir: cfg.UploadDir}, nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

// Save copies r to disk under a fresh name.
func (s *AttachmentStore) Save(name string, r io.Reader) (Attachment, error) {
	a := Attachment{Name: cleanName(name)}
	a.StoredName = uuid.NewString() + "_" + a.Name

	f, err := os.OpenFile(s.Path(a), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Attachment{}, errors.Wrap(err, "create attachment")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return Attachment{}, errors.Wrap(err, "write attachment")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return Attachment{}, errors.Wrap(err, "close attachment")
	}
	return a, nil
}

func (s *AttachmentStore) SaveUpload(fh *multipart.FileHeader) (Attachment, error) {
	src, err := fh.Open()
	if err != nil {
		return Attachment{}, errors.Wrap(err, "open upload")
	}
	defer src.Close()
	return s.Save(fh.Filename, src)
}

func (s *AttachmentStore) Path(a Attachment) string {
	return filepath.Join(s.dir, filepath.Base(a.StoredName))
}

func (s *AttachmentStore) Remove(a Attachment) error {
	err := os.Remove(s.Path(a))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
