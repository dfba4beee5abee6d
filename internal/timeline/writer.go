package timeline

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// WritePlan saves a plan as YAML.
func WritePlan(plan *Plan, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePlan(f, plan); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodePlan streams a plan as YAML
func EncodePlan(w io.Writer, plan *Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return err
	}
	return enc.Close()
}

// ReadPlan loads a saved plan and checks that it still matches what Build
// produces for its inputs. Hand-edited timings are rejected.
func ReadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	if err := plan.Verify(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Verify rebuilds the plan from its inputs and compares every window and
// segment within Tolerance.
func (p *Plan) Verify() error {
	want, err := Build(p.ImageCount, p.AudioDuration, p.Effects)
	if err != nil {
		return err
	}

	if !near(p.EffectiveDuration, want.EffectiveDuration) || !near(p.ImageDuration, want.ImageDuration) {
		return fmt.Errorf("%w: plan durations do not match %d images over %.3fs", ErrInvalidInput, p.ImageCount, p.AudioDuration)
	}
	if !nearWindow(p.FadeIn, want.FadeIn) {
		return fmt.Errorf("%w: fade-in window %+v, expected %+v", ErrInvalidInput, p.FadeIn, want.FadeIn)
	}
	if !nearWindow(p.FadeOut, want.FadeOut) {
		return fmt.Errorf("%w: fade-out window %+v, expected %+v", ErrInvalidInput, p.FadeOut, want.FadeOut)
	}
	if len(p.Segments) != len(want.Segments) {
		return fmt.Errorf("%w: %d segments, expected %d", ErrInvalidInput, len(p.Segments), len(want.Segments))
	}
	for i, s := range p.Segments {
		w := want.Segments[i]
		if s.Kind != w.Kind || s.Image != w.Image || s.Next != w.Next ||
			!near(s.Start, w.Start) || !near(s.Duration, w.Duration) {
			return fmt.Errorf("%w: segment %d is %+v, expected %+v", ErrInvalidInput, i, s, w)
		}
	}
	if !near(p.SegmentsDuration(), p.EffectiveDuration) {
		return fmt.Errorf("%w: segments add up to %.6fs, expected %.6fs", ErrInvalidInput, p.SegmentsDuration(), p.EffectiveDuration)
	}
	return nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

func nearWindow(a, b Window) bool {
	return near(a.Start, b.Start) && near(a.Duration, b.Duration)
}
