package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/otiai10/copy"
)

// DownloadName is the filename offered to end users.
const DownloadName = "my_music_video.mp4"

var ErrNotFound = errors.New("video not found")

// LocalStore keeps finished videos in the output directory as
// output_<id>.mp4.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// FileName returns the artifact name for id.
func FileName(id string) string {
	return fmt.Sprintf("output_%s.mp4", id)
}

// Place moves a finished video into the store. A partially written copy is
// removed on failure so the output directory only ever holds complete files.
func (s *LocalStore) Place(id, src string) (string, error) {
	dst := filepath.Join(s.dir, FileName(id))

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}

	// Workspace and output dir may live on different filesystems.
	if err := copy.Copy(src, dst); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to place video: %w", err)
	}
	os.Remove(src)
	return dst, nil
}

// Path resolves the stored file for id.
func (s *LocalStore) Path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}
	p := filepath.Join(s.dir, FileName(id))
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return p, nil
}
