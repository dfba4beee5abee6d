package system

import (
	"image"
	"sync"
)

// FramePool reuses *image.RGBA canvases keyed by their bounds. Every staged
// image is fitted into a canvas of the output size, so one bucket usually
// serves a whole request.
type FramePool struct {
	buckets sync.Map // image.Rectangle -> *sync.Pool
}

var frames FramePool

// GetFrame returns a canvas with the given bounds. Its contents are
// undefined; callers must paint every pixel.
func GetFrame(rect image.Rectangle) *image.RGBA {
	return frames.Get(rect)
}

// PutFrame hands a canvas back for reuse.
func PutFrame(img *image.RGBA) {
	frames.Put(img)
}

func (p *FramePool) Get(rect image.Rectangle) *image.RGBA {
	if b, ok := p.buckets.Load(rect); ok {
		return b.(*sync.Pool).Get().(*image.RGBA)
	}
	b, _ := p.buckets.LoadOrStore(rect, &sync.Pool{
		New: func() any { return image.NewRGBA(rect) },
	})
	return b.(*sync.Pool).Get().(*image.RGBA)
}

// Put drops canvases whose size was never handed out.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	if b, ok := p.buckets.Load(img.Rect); ok {
		b.(*sync.Pool).Put(img)
	}
}
