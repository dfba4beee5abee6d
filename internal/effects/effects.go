package effects

import (
	"fmt"
	"strconv"
	"strings"
)

// Transition produces the filter that blends two consecutive stills.
// offset is how long the first still is shown alone before the blend starts.
type Transition interface {
	Filter(offset, duration float64) string
}

// Dissolve is a linear cross-fade between two stills.
type Dissolve struct{}

func (Dissolve) Filter(offset, duration float64) string {
	return fmt.Sprintf("xfade=transition=fade:duration=%s:offset=%s", Seconds(duration), Seconds(offset))
}

// Seconds formats a duration for ffmpeg arguments without losing precision.
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FilterBuilder chains simple video filters.
type FilterBuilder struct {
	filters []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// FPS forces a constant output frame rate.
func (fb *FilterBuilder) FPS(fps int) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%d", fps))
	return fb
}

// Hold freezes the first frame for lead seconds and the last frame for tail
// seconds, extending the stream on both ends.
func (fb *FilterBuilder) Hold(lead, tail float64) *FilterBuilder {
	var opts []string
	if lead > 0 {
		opts = append(opts, "start_mode=clone", "start_duration="+Seconds(lead))
	}
	if tail > 0 {
		opts = append(opts, "stop_mode=clone", "stop_duration="+Seconds(tail))
	}
	if len(opts) == 0 {
		return fb
	}
	fb.filters = append(fb.filters, "tpad="+strings.Join(opts, ":"))
	return fb
}

// FadeIn fades from black over the first duration seconds.
func (fb *FilterBuilder) FadeIn(duration float64) *FilterBuilder {
	if duration <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fade=t=in:st=0:d=%s:color=black", Seconds(duration)))
	return fb
}

// FadeOut fades to black over duration seconds beginning at start.
func (fb *FilterBuilder) FadeOut(start, duration float64) *FilterBuilder {
	if duration <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fade=t=out:st=%s:d=%s:color=black", Seconds(start), Seconds(duration)))
	return fb
}

// Format sets the output pixel format.
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	if filter != "" {
		fb.filters = append(fb.filters, filter)
	}
	return fb
}

// Build joins the chain with commas.
func (fb *FilterBuilder) Build() string {
	return strings.Join(fb.filters, ",")
}

// Graph labels a two-input transition for use with -filter_complex.
func Graph(t Transition, offset, duration float64, tail string) string {
	g := fmt.Sprintf("[0:v][1:v]%s", t.Filter(offset, duration))
	if tail != "" {
		g += "," + tail
	}
	return g + "[v]"
}
