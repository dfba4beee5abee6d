package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/letsgo999/music-video-maker/internal/system"
)

// Image is one staged still. A PDF contributes one Image per page.
type Image struct {
	Name string // original filename, also the sort key
	Path string // staged copy inside the workspace
	Page int
}

// Audio is the staged soundtrack.
type Audio struct {
	Name     string
	Path     string
	Duration float64
}

// Workspace is a request-scoped temporary directory. Close removes it along
// with everything staged or rendered inside.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh directory under base (the system temp dir
// when base is empty).
func NewWorkspace(base string) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(base, "musicvideo-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	for _, sub := range []string{"inputs", "frames", "clips"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0755); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins elem onto the workspace directory.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}

// StageAudio copies the soundtrack into the workspace.
func (w *Workspace) StageAudio(b Blob) (*Audio, error) {
	if !system.IsAudio(b.Name()) {
		return nil, fmt.Errorf("unsupported audio format: %s", b.Name())
	}
	dst := w.Path("inputs", "audio"+filepath.Ext(b.Name()))
	if err := b.Stage(dst); err != nil {
		return nil, err
	}
	return &Audio{Name: b.Name(), Path: dst}, nil
}

// StageImages copies the images into the workspace sorted by filename and
// expands PDFs into their pages at the document's position.
func (w *Workspace) StageImages(blobs []Blob) ([]Image, error) {
	sorted := make([]Blob, len(blobs))
	copy(sorted, blobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name() < sorted[j].Name()
	})

	var images []Image
	for i, b := range sorted {
		if !system.IsImage(b.Name()) {
			return nil, fmt.Errorf("unsupported image format: %s", b.Name())
		}
		dst := w.Path("inputs", fmt.Sprintf("%04d%s", i, filepath.Ext(b.Name())))
		if err := b.Stage(dst); err != nil {
			return nil, err
		}

		src, err := Open(dst)
		if err != nil {
			return nil, err
		}
		pages := src.PageCount()
		src.Close()
		if pages == 0 {
			return nil, fmt.Errorf("%s has no pages", b.Name())
		}

		for p := 0; p < pages; p++ {
			images = append(images, Image{Name: b.Name(), Path: dst, Page: p})
		}
	}
	return images, nil
}

// Load decodes the still.
func (img Image) Load() (image.Image, error) {
	src, err := Open(img.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.RenderPage(img.Page)
}
