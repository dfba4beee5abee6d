package render

import (
	"errors"
	"fmt"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/timeline"
)

// ErrRenderFailed matches every failure raised after planning succeeded.
var ErrRenderFailed = errors.New("render failed")

// ValidationError rejects a request before any work is done.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error is a backend or I/O failure during rendering. The wrapped message
// is passed through unchanged, including any ffmpeg output.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrRenderFailed
}

// PlanError carries a planner failure together with the largest image
// count the audio could have held.
type PlanError struct {
	Err       error
	MaxImages int
}

func (e *PlanError) Error() string {
	return e.Err.Error()
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// PlanTimeline builds a plan and wraps planner failures in a PlanError.
func PlanTimeline(imageCount int, audioDuration float64, effects config.EffectConfig) (*timeline.Plan, error) {
	plan, err := timeline.Build(imageCount, audioDuration, effects)
	if err != nil {
		return nil, &PlanError{Err: err, MaxImages: timeline.MaxImages(audioDuration, effects)}
	}
	return plan, nil
}

// Describe turns any pipeline error into a message fit for end users.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return fmt.Sprintf("Please check the %s: %s.", vErr.Field, vErr.Reason)
	}

	if errors.Is(err, timeline.ErrAudioTooShort) {
		return "The audio is too short. The video cannot be longer than the audio once the fade-in and fade-out are included."
	}

	if errors.Is(err, timeline.ErrTooManyImages) {
		msg := "There are too many images for the length of the audio."
		var pErr *PlanError
		if errors.As(err, &pErr) && pErr.MaxImages > 0 {
			return fmt.Sprintf("%s Reduce the number of images to at most %d.", msg, pErr.MaxImages)
		}
		return msg + " Please reduce the number of images."
	}

	if errors.Is(err, timeline.ErrInvalidInput) {
		return fmt.Sprintf("The request could not be planned: %v.", err)
	}

	var rErr *Error
	if errors.As(err, &rErr) {
		return fmt.Sprintf("An error occurred while creating the video: %v", rErr.Err)
	}

	return fmt.Sprintf("An error occurred while creating the video: %v", err)
}
