package source

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/gen2brain/go-fitz"

	"github.com/letsgo999/music-video-maker/internal/system"
)

// PDF pages are rasterised at this density before being fitted to the frame.
const pdfDPI = 150

// Source yields one or more stills from a staged input file.
type Source interface {
	PageCount() int
	RenderPage(index int) (image.Image, error)
	Close() error
}

// Open picks the reader for path by extension.
func Open(path string) (Source, error) {
	if system.HasExtension(path, system.DocumentExtensions) {
		return NewPDFSource(path)
	}
	if system.HasExtension(path, system.ImageExtensions) {
		return &FileSource{path: path}, nil
	}
	return nil, fmt.Errorf("unsupported image format: %s", path)
}

// PDFSource renders document pages with MuPDF.
type PDFSource struct {
	doc  *fitz.Document
	path string
}

func NewPDFSource(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return &PDFSource{doc: doc, path: path}, nil
}

func (p *PDFSource) PageCount() int {
	return p.doc.NumPage()
}

func (p *PDFSource) RenderPage(index int) (image.Image, error) {
	if index < 0 || index >= p.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range for %s", index, p.path)
	}
	return p.doc.ImageDPI(index, pdfDPI)
}

func (p *PDFSource) Close() error {
	return p.doc.Close()
}

// FileSource is a single raster image.
type FileSource struct {
	path string
}

func (f *FileSource) PageCount() int {
	return 1
}

func (f *FileSource) RenderPage(index int) (image.Image, error) {
	if index != 0 {
		return nil, fmt.Errorf("page %d out of range for %s", index, f.path)
	}
	img, err := imgio.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}
	return img, nil
}

func (f *FileSource) Close() error {
	return nil
}
