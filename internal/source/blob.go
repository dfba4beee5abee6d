package source

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

// Blob is an input byte source with the filename it was supplied under.
type Blob interface {
	Name() string
	Stage(dst string) error
}

// FileBlob is an input already on the local disk.
type FileBlob struct {
	Path string
}

func (b FileBlob) Name() string {
	return filepath.Base(b.Path)
}

func (b FileBlob) Stage(dst string) error {
	if err := copy.Copy(b.Path, dst); err != nil {
		return fmt.Errorf("failed to stage %s: %w", b.Path, err)
	}
	return nil
}

// FileBlobs wraps a list of paths.
func FileBlobs(paths []string) []Blob {
	blobs := make([]Blob, len(paths))
	for i, p := range paths {
		blobs[i] = FileBlob{Path: p}
	}
	return blobs
}

// UploadBlob is a file received in a multipart form.
type UploadBlob struct {
	Header *multipart.FileHeader
}

func (b UploadBlob) Name() string {
	return filepath.Base(b.Header.Filename)
}

func (b UploadBlob) Stage(dst string) error {
	src, err := b.Header.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", b.Header.Filename, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to stage upload %s: %w", b.Header.Filename, err)
	}
	return out.Close()
}
