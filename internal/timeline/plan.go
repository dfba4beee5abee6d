package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/letsgo999/music-video-maker/internal/config"
)

// Tolerance is the allowed floating point drift when comparing durations.
const Tolerance = 1e-6

// MaxImageCount bounds a single plan regardless of how long the audio is.
const MaxImageCount = 10000

var (
	ErrInvalidInput  = errors.New("invalid planner input")
	ErrAudioTooShort = errors.New("audio too short")
	ErrTooManyImages = errors.New("too many images")
)

type Kind string

const (
	KindExposure   Kind = "exposure"
	KindTransition Kind = "transition"
)

// Segment is one timed window of the rendered timeline. For exposures Image
// is the image shown alone; for transitions Image dissolves into Next.
type Segment struct {
	Kind     Kind    `yaml:"kind" json:"kind"`
	Image    int     `yaml:"image" json:"image"`
	Next     int     `yaml:"next,omitempty" json:"next,omitempty"`
	Start    float64 `yaml:"start" json:"start"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// End returns Start + Duration.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

// Window is a reserved span of the timeline (fade-in lead or fade-out tail).
type Window struct {
	Start    float64 `yaml:"start" json:"start"`
	Duration float64 `yaml:"duration" json:"duration"`
}

// Plan is the planner's output. Segment starts are absolute timeline
// positions, so the first exposure starts at FadeIn.Duration and the plan
// spans exactly AudioDuration.
type Plan struct {
	ImageCount        int                 `yaml:"image_count" json:"image_count"`
	AudioDuration     float64             `yaml:"audio_duration" json:"audio_duration"`
	Effects           config.EffectConfig `yaml:"effects" json:"effects"`
	EffectiveDuration float64             `yaml:"effective_duration" json:"effective_duration"`
	ImageDuration     float64             `yaml:"image_duration" json:"image_duration"`
	FadeIn            Window              `yaml:"fade_in" json:"fade_in"`
	FadeOut           Window              `yaml:"fade_out" json:"fade_out"`
	Segments          []Segment           `yaml:"segments" json:"segments"`
}

// Build lays out imageCount images over audioDuration seconds.
//
// The effective duration (audio minus both fades) is shared by N exposures
// of equal length and N-1 transitions of effects.Transition each:
//
//	N*d + (N-1)*t = audio - fadeIn - fadeOut
//
// Transition i starts d seconds after exposure i and ends where exposure
// i+1 begins, so dissolves never extend the total length. A zero transition
// duration means hard cuts and produces no transition segments.
func Build(imageCount int, audioDuration float64, effects config.EffectConfig) (*Plan, error) {
	if imageCount < 1 {
		return nil, fmt.Errorf("%w: image count must be at least 1, got %d", ErrInvalidInput, imageCount)
	}
	if math.IsNaN(audioDuration) || math.IsInf(audioDuration, 0) {
		return nil, fmt.Errorf("%w: audio duration is not a finite number", ErrInvalidInput)
	}
	if !finite(effects.Transition) || !finite(effects.FadeIn) || !finite(effects.FadeOut) {
		return nil, fmt.Errorf("%w: effect durations must be finite", ErrInvalidInput)
	}
	if err := effects.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	effective := audioDuration - effects.FadeIn - effects.FadeOut
	if effective <= 0 {
		return nil, fmt.Errorf("%w: %.2fs of audio leaves no time after %.2fs fade-in and %.2fs fade-out",
			ErrAudioTooShort, audioDuration, effects.FadeIn, effects.FadeOut)
	}
	if imageCount > MaxImageCount {
		return nil, fmt.Errorf("%w: at most %d images per video, got %d", ErrTooManyImages, MaxImageCount, imageCount)
	}

	single := imageDuration(imageCount, effective, effects.Transition)
	if single <= 0 {
		return nil, fmt.Errorf("%w: %d images with %.2fs transitions need more than %.2fs",
			ErrTooManyImages, imageCount, effects.Transition, effective)
	}

	p := &Plan{
		ImageCount:        imageCount,
		AudioDuration:     audioDuration,
		Effects:           effects,
		EffectiveDuration: effective,
		ImageDuration:     single,
		FadeIn:            Window{Start: 0, Duration: effects.FadeIn},
		FadeOut:           Window{Start: audioDuration - effects.FadeOut, Duration: effects.FadeOut},
		Segments:          make([]Segment, 0, 2*imageCount-1),
	}

	cursor := effects.FadeIn
	for i := 0; i < imageCount; i++ {
		p.Segments = append(p.Segments, Segment{
			Kind:     KindExposure,
			Image:    i,
			Start:    cursor,
			Duration: single,
		})
		cursor += single

		if i < imageCount-1 && effects.Transition > 0 {
			p.Segments = append(p.Segments, Segment{
				Kind:     KindTransition,
				Image:    i,
				Next:     i + 1,
				Start:    cursor,
				Duration: effects.Transition,
			})
			cursor += effects.Transition
		}
	}

	return p, nil
}

// MaxImages returns the largest image count Build accepts for the given
// audio duration and effects. It returns 0 when the audio is too short for
// any image and never more than MaxImageCount.
func MaxImages(audioDuration float64, effects config.EffectConfig) int {
	effective := audioDuration - effects.FadeIn - effects.FadeOut
	if effective <= 0 {
		return 0
	}
	t := effects.Transition
	if t <= 0 {
		return MaxImageCount
	}

	// d(n) = (E - (n-1)t)/n > 0  <=>  n < (E + t)/t
	bound := math.Ceil((effective+t)/t) - 1
	if bound >= MaxImageCount {
		bound = MaxImageCount
	}
	n := int(bound)
	for n > 0 && imageDuration(n, effective, t) <= 0 {
		n--
	}
	for n < MaxImageCount && imageDuration(n+1, effective, t) > 0 {
		n++
	}
	return n
}

// Exposures returns the exposure segments in order.
func (p *Plan) Exposures() []Segment {
	return p.filter(KindExposure)
}

// Transitions returns the transition segments in order.
func (p *Plan) Transitions() []Segment {
	return p.filter(KindTransition)
}

// SegmentsDuration sums every segment duration. For a valid plan it equals
// EffectiveDuration.
func (p *Plan) SegmentsDuration() float64 {
	sum := 0.0
	for _, s := range p.Segments {
		sum += s.Duration
	}
	return sum
}

// TotalDuration is the rendered length including both fade windows.
func (p *Plan) TotalDuration() float64 {
	return p.FadeIn.Duration + p.SegmentsDuration() + p.FadeOut.Duration
}

func (p *Plan) filter(kind Kind) []Segment {
	var out []Segment
	for _, s := range p.Segments {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func imageDuration(n int, effective, transition float64) float64 {
	totalTransition := float64(max(0, n-1)) * transition
	return (effective - totalTransition) / float64(n)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
