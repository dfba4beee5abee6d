package render

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/letsgo999/music-video-maker/internal/timeline"
	"github.com/letsgo999/music-video-maker/internal/video"
)

// Clips groups a plan into renderable clips. Exposure i and the transition
// that follows it form one dissolve clip, so a transition is rendered
// exactly once and the clip durations add up to the effective duration.
func Clips(plan *timeline.Plan, frames []string, dir string) ([]video.Clip, error) {
	if len(frames) != plan.ImageCount {
		return nil, fmt.Errorf("have %d frames for a plan of %d images", len(frames), plan.ImageCount)
	}

	exposures := plan.Exposures()
	transitions := plan.Transitions()

	clips := make([]video.Clip, 0, len(exposures))
	total := 0.0
	for i, exp := range exposures {
		clip := video.Clip{
			Index: i,
			Start: exp.Start - plan.FadeIn.Duration,
			From:  frames[exp.Image],
			Hold:  exp.Duration,
			Out:   filepath.Join(dir, fmt.Sprintf("clip_%04d.mp4", i)),
		}
		if i < len(transitions) {
			tr := transitions[i]
			if tr.Image != exp.Image {
				return nil, fmt.Errorf("transition %d starts from image %d, expected %d", i, tr.Image, exp.Image)
			}
			clip.To = frames[tr.Next]
			clip.Transition = tr.Duration
		}
		total += clip.Duration()
		clips = append(clips, clip)
	}

	if math.Abs(total-plan.EffectiveDuration) > timeline.Tolerance {
		return nil, fmt.Errorf("clip durations add up to %.6fs, expected %.6fs", total, plan.EffectiveDuration)
	}
	return clips, nil
}
