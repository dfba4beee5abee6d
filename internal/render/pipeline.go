package render

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/source"
	"github.com/letsgo999/music-video-maker/internal/system"
	"github.com/letsgo999/music-video-maker/internal/timeline"
	"github.com/letsgo999/music-video-maker/internal/video"
)

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Store takes ownership of a finished video.
type Store interface {
	Place(id, src string) (string, error)
}

// Publisher makes a stored video reachable elsewhere and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, id, path string) (string, error)
}

// Request is one render job. Effects overrides the configured defaults.
type Request struct {
	Images  []source.Blob
	Audio   source.Blob
	Effects *config.EffectConfig
}

type Result struct {
	ID      string
	Path    string
	URL     string
	Plan    *timeline.Plan
	Width   int
	Height  int
	Elapsed time.Duration
}

// Pipeline turns images and a soundtrack into a finished video. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	encoder   video.VideoEncoder
	prober    Prober
	store     Store
	publisher Publisher
	logger    zerolog.Logger
}

func NewPipeline(cfg *config.Config, encoder video.VideoEncoder, prober Prober, store Store, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		encoder: encoder,
		prober:  prober,
		store:   store,
		logger:  logger,
	}
}

// WithPublisher uploads every finished video through pub.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// Run blocks until the video has been placed in the store or an error
// occurs. The request workspace is removed on every path.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	effects := p.cfg.Effects
	if req.Effects != nil {
		effects = *req.Effects
	}
	if err := Validate(req, effects); err != nil {
		return nil, err
	}

	ws, err := source.NewWorkspace(p.cfg.TempDir)
	if err != nil {
		return nil, &Error{Stage: "workspace", Err: err}
	}
	defer func() {
		if err := ws.Close(); err != nil {
			p.logger.Warn().Err(err).Str("dir", ws.Dir()).Msg("failed to remove workspace")
		}
	}()

	audio, err := ws.StageAudio(req.Audio)
	if err != nil {
		return nil, &Error{Stage: "stage", Err: err}
	}
	images, err := ws.StageImages(req.Images)
	if err != nil {
		return nil, &Error{Stage: "stage", Err: err}
	}

	audio.Duration, err = p.prober.Duration(ctx, audio.Path)
	if err != nil {
		return nil, &Error{Stage: "probe", Err: err}
	}

	plan, err := PlanTimeline(len(images), audio.Duration, effects)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("audio", audio.Name).
		Float64("duration", audio.Duration).
		Int("images", len(images)).
		Float64("image_duration", plan.ImageDuration).
		Float64("transition", effects.Transition).
		Msg("timeline planned")

	width, height, err := p.frameSize(images[0])
	if err != nil {
		return nil, &Error{Stage: "frames", Err: err}
	}

	frames, err := p.prepareFrames(ctx, ws, images, width, height)
	if err != nil {
		return nil, &Error{Stage: "frames", Err: err}
	}

	clips, err := Clips(plan, frames, ws.Path("clips"))
	if err != nil {
		return nil, &Error{Stage: "clips", Err: err}
	}
	if err := p.encodeClips(ctx, clips); err != nil {
		return nil, &Error{Stage: "clips", Err: err}
	}

	clipPaths := make([]string, len(clips))
	for i, c := range clips {
		clipPaths[i] = c.Out
	}

	final := ws.Path("final.mp4")
	err = p.encoder.Concatenate(ctx, video.ConcatOptions{
		Clips:     clipPaths,
		AudioPath: audio.Path,
		FadeIn:    effects.FadeIn,
		FadeOut:   effects.FadeOut,
		Duration:  audio.Duration,
		ListPath:  ws.Path("clips", "inputs.txt"),
		Output:    final,
	})
	if err != nil {
		return nil, &Error{Stage: "finalize", Err: err}
	}

	id := uuid.NewString()
	path, err := p.store.Place(id, final)
	if err != nil {
		return nil, &Error{Stage: "store", Err: err}
	}

	result := &Result{
		ID:     id,
		Path:   path,
		Plan:   plan,
		Width:  width,
		Height: height,
	}

	if p.publisher != nil {
		url, err := p.publisher.Publish(ctx, id, path)
		if err != nil {
			p.logger.Warn().Err(err).Str("id", id).Msg("publish failed, keeping local copy only")
		} else {
			result.URL = url
		}
	}

	result.Elapsed = time.Since(start)
	p.logger.Info().
		Str("id", id).
		Str("path", path).
		Dur("elapsed", result.Elapsed).
		Msg("video ready")
	return result, nil
}

// Validate checks a request before anything is staged.
func Validate(req Request, effects config.EffectConfig) error {
	if len(req.Images) == 0 {
		return &ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	if len(req.Images) > timeline.MaxImageCount {
		return &ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d images are supported", timeline.MaxImageCount)}
	}
	for _, img := range req.Images {
		if img == nil {
			return &ValidationError{Field: "images", Reason: "empty image entry"}
		}
		if !system.IsImage(img.Name()) {
			return &ValidationError{Field: "images", Reason: fmt.Sprintf("%s is not a PNG, JPEG or PDF file", img.Name())}
		}
	}

	if req.Audio == nil {
		return &ValidationError{Field: "audio", Reason: "an audio file is required"}
	}
	if !system.IsAudio(req.Audio.Name()) {
		return &ValidationError{Field: "audio", Reason: fmt.Sprintf("%s is not an MP3 or WAV file", req.Audio.Name())}
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"transition", effects.Transition},
		{"fade_in", effects.FadeIn},
		{"fade_out", effects.FadeOut},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return &ValidationError{Field: f.name, Reason: "must be a non-negative number of seconds"}
		}
	}
	return nil
}

func (p *Pipeline) frameSize(first source.Image) (int, int, error) {
	width, height := p.cfg.Video.Width, p.cfg.Video.Height
	if !p.cfg.Video.AutoAspect {
		return width, height, nil
	}
	w, err := source.AutoWidth(first, height)
	if err != nil {
		return 0, 0, err
	}
	return w, height, nil
}

func (p *Pipeline) prepareFrames(ctx context.Context, ws *source.Workspace, images []source.Image, width, height int) ([]string, error) {
	frames := make([]string, len(images))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(system.WorkerCount(p.cfg.Workers))

	for i, img := range images {
		frames[i] = ws.Path("frames", fmt.Sprintf("frame_%04d.png", i))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := source.RenderFrame(img, width, height, frames[i]); err != nil {
				return fmt.Errorf("image %s: %w", img.Name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.logger.Debug().Int("frames", len(frames)).Int("width", width).Int("height", height).Msg("frames fitted")
	return frames, nil
}

func (p *Pipeline) encodeClips(ctx context.Context, clips []video.Clip) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(system.WorkerCount(p.cfg.Workers))

	var done atomic.Int32
	for _, clip := range clips {
		g.Go(func() error {
			if err := p.encoder.EncodeClip(ctx, clip); err != nil {
				return fmt.Errorf("clip %d: %w", clip.Index, err)
			}
			n := done.Add(1)
			p.logger.Debug().Int("clip", clip.Index).Msgf("ready %d/%d", n, len(clips))
			return nil
		})
	}
	return g.Wait()
}
