package source

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/imgio"
	"golang.org/x/image/draw"

	"github.com/letsgo999/music-video-maker/internal/system"
)

// Fit scales src to fit inside a width x height frame, centred on black.
// The returned canvas comes from the frame pool; hand it back with
// system.PutFrame once it has been written out.
func Fit(src image.Image, width, height int) *image.RGBA {
	dst := system.GetFrame(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)

	sb := src.Bounds()
	if sb.Empty() {
		return dst
	}

	scale := math.Min(float64(width)/float64(sb.Dx()), float64(height)/float64(sb.Dy()))
	w := clamp(int(math.Round(float64(sb.Dx())*scale)), 1, width)
	h := clamp(int(math.Round(float64(sb.Dy())*scale)), 1, height)
	x := (width - w) / 2
	y := (height - h) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), src, sb, draw.Over, nil)
	return dst
}

// RenderFrame decodes img, fits it to the frame and writes it as PNG to out.
func RenderFrame(img Image, width, height int, out string) error {
	src, err := img.Load()
	if err != nil {
		return err
	}

	frame := Fit(src, width, height)
	defer system.PutFrame(frame)

	if err := imgio.Save(out, frame, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save frame %s: %w", out, err)
	}
	return nil
}

// AutoWidth derives an even frame width matching the aspect ratio of img at
// the given height.
func AutoWidth(img Image, height int) (int, error) {
	src, err := img.Load()
	if err != nil {
		return 0, err
	}
	b := src.Bounds()
	if b.Dy() == 0 {
		return 0, fmt.Errorf("%s has zero height", img.Name)
	}
	w := int(math.Round(float64(height) * float64(b.Dx()) / float64(b.Dy())))
	if w%2 != 0 {
		w++
	}
	if w < 2 {
		w = 2
	}
	return w, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
