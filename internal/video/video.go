package video

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/effects"
	"github.com/letsgo999/music-video-maker/internal/system"
)

const pixFmt = "yuv420p"

// Clip is one renderable piece of the timeline. A hold clip shows From for
// Hold seconds. A dissolve clip shows From for Hold seconds and then blends
// into To over Transition seconds. Start is the clip's offset from the first
// clip.
type Clip struct {
	Index      int
	Start      float64
	From       string
	To         string
	Hold       float64
	Transition float64
	Out        string
}

func (c Clip) IsDissolve() bool {
	return c.To != "" && c.Transition > 0
}

func (c Clip) Duration() float64 {
	if c.IsDissolve() {
		return c.Hold + c.Transition
	}
	return c.Hold
}

// Frames is the clip length in whole frames. Both ends are rounded on the
// shared timeline, so consecutive clips tile it and no boundary lands more
// than half a frame away from its planned time.
func (c Clip) Frames(fps int) int {
	f := float64(fps)
	n := int(math.Round((c.Start+c.Duration())*f)) - int(math.Round(c.Start*f))
	return max(n, 1)
}

// ConcatOptions describes the final assembly of rendered clips.
type ConcatOptions struct {
	Clips     []string
	AudioPath string
	FadeIn    float64
	FadeOut   float64
	// Duration is the length of the finished video, equal to the audio.
	Duration float64
	ListPath string
	Output   string
}

type VideoEncoder interface {
	EncodeClip(ctx context.Context, clip Clip) error
	Concatenate(ctx context.Context, opts ConcatOptions) error
}

type FFmpegEncoder struct {
	Encoder string
	Quality int
	FPS     int
	logger  zerolog.Logger
}

// NewFFmpegEncoder resolves the H.264 encoder ("auto" probes ffmpeg for a
// hardware encoder, empty means libx264) and its default quality.
func NewFFmpegEncoder(ctx context.Context, cfg config.VideoConfig, logger zerolog.Logger) *FFmpegEncoder {
	encoder := cfg.Encoder
	switch encoder {
	case "":
		encoder = "libx264"
	case "auto":
		encoder = system.GetBestH264Encoder(ctx)
	}

	quality := cfg.Quality
	if quality <= 0 {
		quality = system.DefaultQuality(encoder)
	}

	logger.Debug().Str("encoder", encoder).Int("quality", quality).Msg("video encoder selected")
	return &FFmpegEncoder{Encoder: encoder, Quality: quality, FPS: cfg.FPS, logger: logger}
}

func (e *FFmpegEncoder) EncodeClip(ctx context.Context, clip Clip) error {
	var args []string
	if clip.IsDissolve() {
		args = e.buildDissolveArgs(clip)
	} else {
		args = e.buildHoldArgs(clip)
	}
	return e.run(ctx, args)
}

func (e *FFmpegEncoder) buildHoldArgs(clip Clip) []string {
	args := []string{
		"-y",
		"-loop", "1",
		"-framerate", fmt.Sprintf("%d", e.FPS),
		"-i", clip.From,
		"-vf", effects.NewFilterBuilder().FPS(e.FPS).Format(pixFmt).Build(),
		"-frames:v", fmt.Sprintf("%d", clip.Frames(e.FPS)),
		"-an",
	}
	args = append(args, e.videoArgs()...)
	return append(args, clip.Out)
}

// buildDissolveArgs feeds one spare frame past the clip's frame-aligned
// length so the blend never runs short, then cuts at the exact frame count.
func (e *FFmpegEncoder) buildDissolveArgs(clip Clip) []string {
	frames := clip.Frames(e.FPS)
	span := float64(frames+1) / float64(e.FPS)
	tail := effects.NewFilterBuilder().FPS(e.FPS).Format(pixFmt).Build()

	args := []string{
		"-y",
		"-loop", "1", "-framerate", fmt.Sprintf("%d", e.FPS), "-t", effects.Seconds(span), "-i", clip.From,
		"-loop", "1", "-framerate", fmt.Sprintf("%d", e.FPS), "-t", effects.Seconds(span-clip.Hold), "-i", clip.To,
		"-filter_complex", effects.Graph(effects.Dissolve{}, clip.Hold, clip.Transition, tail),
		"-map", "[v]",
		"-frames:v", fmt.Sprintf("%d", frames),
		"-an",
	}
	args = append(args, e.videoArgs()...)
	return append(args, clip.Out)
}

func (e *FFmpegEncoder) videoArgs() []string {
	args := []string{
		"-r", fmt.Sprintf("%d", e.FPS),
		"-pix_fmt", pixFmt,
		"-c:v", e.Encoder,
	}

	switch e.Encoder {
	case "h264_videotoolbox":
		bitrate := e.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", e.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", e.Quality), "-preset", "medium")
	}
	return args
}

// Concatenate joins the clips in order, pads and fades the ends, and muxes
// the soundtrack. The result is cut to exactly opts.Duration.
func (e *FFmpegEncoder) Concatenate(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Clips) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}
	if err := writeConcatList(opts.ListPath, opts.Clips); err != nil {
		return err
	}
	return e.run(ctx, e.buildConcatArgs(opts))
}

func (e *FFmpegEncoder) buildConcatArgs(opts ConcatOptions) []string {
	filter := effects.NewFilterBuilder().
		FPS(e.FPS).
		Hold(opts.FadeIn, opts.FadeOut).
		FadeIn(opts.FadeIn).
		FadeOut(opts.Duration-opts.FadeOut, opts.FadeOut).
		Format(pixFmt).
		Build()

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", opts.ListPath,
		"-i", opts.AudioPath,
		"-vf", filter,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	args = append(args, e.videoArgs()...)
	args = append(args,
		"-c:a", "aac", "-b:a", "192k",
		"-t", effects.Seconds(opts.Duration),
		"-movflags", "+faststart",
		opts.Output,
	)
	return args
}

func writeConcatList(path string, clips []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, p := range clips {
		absPath, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`))
	}
	return f.Close()
}

func (e *FFmpegEncoder) run(ctx context.Context, args []string) error {
	e.logger.Debug().Strs("args", args).Msg("ffmpeg")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg error: %v, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
