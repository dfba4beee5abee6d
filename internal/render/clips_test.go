package render

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/timeline"
)

func framesFor(n int) []string {
	frames := make([]string, n)
	for i := range frames {
		frames[i] = fmt.Sprintf("frame_%04d.png", i)
	}
	return frames
}

func TestClipsGrouping(t *testing.T) {
	tests := []struct {
		name      string
		images    int
		audio     float64
		effects   config.EffectConfig
		dissolves int
	}{
		{"three images", 3, 10, config.DefaultEffects(), 2},
		{"single image", 1, 10, config.DefaultEffects(), 0},
		{"hard cuts", 4, 12, config.EffectConfig{Transition: 0, FadeIn: 1, FadeOut: 1}, 0},
		{"fractional", 7, 61.3, config.EffectConfig{Transition: 0.75, FadeIn: 2, FadeOut: 1.5}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := timeline.Build(tt.images, tt.audio, tt.effects)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			clips, err := Clips(plan, framesFor(tt.images), "clips")
			if err != nil {
				t.Fatalf("Clips failed: %v", err)
			}
			if len(clips) != tt.images {
				t.Fatalf("Expected %d clips, got %d", tt.images, len(clips))
			}

			total := 0.0
			dissolves := 0
			frames := 0
			for i, c := range clips {
				if math.Abs(c.Start-total) > timeline.Tolerance {
					t.Errorf("Clip %d starts at %f, expected %f", i, c.Start, total)
				}
				total += c.Duration()
				frames += c.Frames(24)
				if c.IsDissolve() {
					dissolves++
					if c.To != fmt.Sprintf("frame_%04d.png", i+1) {
						t.Errorf("Clip %d dissolves into %s", i, c.To)
					}
				}
			}
			if dissolves != tt.dissolves {
				t.Errorf("Expected %d dissolves, got %d", tt.dissolves, dissolves)
			}
			if math.Abs(total-plan.EffectiveDuration) > timeline.Tolerance {
				t.Errorf("Clip durations %f do not add up to %f", total, plan.EffectiveDuration)
			}
			if want := int(math.Round(plan.EffectiveDuration * 24)); frames != want {
				t.Errorf("Expected %d frames in total, got %d", want, frames)
			}
			if clips[len(clips)-1].IsDissolve() {
				t.Error("Last clip must be a hold")
			}
		})
	}
}

func TestClipsFrameMismatch(t *testing.T) {
	plan, err := timeline.Build(3, 10, config.DefaultEffects())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Clips(plan, framesFor(2), "clips"); err == nil {
		t.Error("Expected error for missing frames")
	}
}

func TestDescribe(t *testing.T) {
	_, tooMany := PlanTimeline(20, 10, config.DefaultEffects())

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "audio", Reason: "an audio file is required"}, "Please check the audio"},
		{"too many", tooMany, "at most 8"},
		{"too short", fmt.Errorf("wrapped: %w", timeline.ErrAudioTooShort), "too short"},
		{"render", &Error{Stage: "finalize", Err: errors.New("ffmpeg error: boom")}, "ffmpeg error: boom"},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("Expected empty message, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("run: %w", &Error{Stage: "clips", Err: errors.New("exit status 1")})
	if !errors.Is(err, ErrRenderFailed) {
		t.Error("Expected render error to match ErrRenderFailed")
	}

	_, pErr := PlanTimeline(5, 5, config.DefaultEffects())
	if !errors.Is(pErr, timeline.ErrTooManyImages) {
		t.Errorf("Expected planner sentinel through PlanError, got %v", pErr)
	}
	if errors.Is(pErr, ErrRenderFailed) {
		t.Error("Planner errors are not render failures")
	}
}
