package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/rs/zerolog"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/source"
	"github.com/letsgo999/music-video-maker/internal/storage"
	"github.com/letsgo999/music-video-maker/internal/timeline"
	"github.com/letsgo999/music-video-maker/internal/video"
)

type fakeEncoder struct {
	mu        sync.Mutex
	clips     []video.Clip
	concats   []video.ConcatOptions
	failClip  int
	failFinal bool
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{failClip: -1}
}

func (f *fakeEncoder) EncodeClip(ctx context.Context, clip video.Clip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, clip)
	if clip.Index == f.failClip {
		return errors.New("ffmpeg error: exit status 1, output: broken clip")
	}
	return os.WriteFile(clip.Out, []byte("clip"), 0644)
}

func (f *fakeEncoder) Concatenate(ctx context.Context, opts video.ConcatOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concats = append(f.concats, opts)
	if f.failFinal {
		return errors.New("ffmpeg error: exit status 1, output: concat failed")
	}
	return os.WriteFile(opts.Output, []byte("video"), 0644)
}

func (f *fakeEncoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clips) + len(f.concats)
}

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) Duration(ctx context.Context, path string) (float64, error) {
	return p.duration, p.err
}

type fakePublisher struct {
	url string
	err error
}

func (p fakePublisher) Publish(ctx context.Context, id, path string) (string, error) {
	return p.url, p.err
}

type fixture struct {
	cfg      *config.Config
	encoder  *fakeEncoder
	store    *storage.LocalStore
	pipeline *Pipeline
}

func newFixture(t *testing.T, audioDuration float64) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "output")
	cfg.Video.Width, cfg.Video.Height = 64, 36
	cfg.Video.AutoAspect = false
	cfg.Workers = 2

	store, err := storage.NewLocalStore(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	enc := newFakeEncoder()
	return &fixture{
		cfg:      cfg,
		encoder:  enc,
		store:    store,
		pipeline: NewPipeline(cfg, enc, fakeProber{duration: audioDuration}, store, zerolog.Nop()),
	}
}

func writeInputs(t *testing.T, n int) ([]source.Blob, source.Blob) {
	t.Helper()
	dir := t.TempDir()
	var images []source.Blob
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("img_%02d.png", i))
		img := image.NewRGBA(image.Rect(0, 0, 40, 30))
		for y := 0; y < 30; y++ {
			for x := 0; x < 40; x++ {
				img.Set(x, y, color.RGBA{uint8(i * 40), 100, 200, 255})
			}
		}
		if err := imgio.Save(p, img, imgio.PNGEncoder()); err != nil {
			t.Fatal(err)
		}
		images = append(images, source.FileBlob{Path: p})
	}

	audio := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(audio, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
	return images, source.FileBlob{Path: audio}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected %s to be empty, found %v", dir, names)
	}
}

func TestRunSuccess(t *testing.T) {
	fx := newFixture(t, 10)
	images, audio := writeInputs(t, 3)

	result, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fx.encoder.clips) != 3 {
		t.Fatalf("Expected 3 clips, got %d", len(fx.encoder.clips))
	}
	total := 0.0
	dissolves := 0
	for _, c := range fx.encoder.clips {
		total += c.Duration()
		if c.IsDissolve() {
			dissolves++
		}
	}
	if math.Abs(total-8) > 1e-6 {
		t.Errorf("Expected clip durations to sum to 8s, got %f", total)
	}
	if dissolves != 2 {
		t.Errorf("Expected 2 dissolve clips, got %d", dissolves)
	}

	if len(fx.encoder.concats) != 1 {
		t.Fatalf("Expected one concatenation, got %d", len(fx.encoder.concats))
	}
	final := fx.encoder.concats[0]
	if final.Duration != 10 || final.FadeIn != 1 || final.FadeOut != 1 {
		t.Errorf("Unexpected concat options %+v", final)
	}
	if len(final.Clips) != 3 || !strings.HasSuffix(final.Clips[2], "clip_0002.mp4") {
		t.Errorf("Clips not concatenated in plan order: %v", final.Clips)
	}

	if filepath.Base(result.Path) != "output_"+result.ID+".mp4" {
		t.Errorf("Unexpected artifact name %s", result.Path)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("Artifact missing: %v", err)
	}
	if result.Plan.ImageDuration != 2 {
		t.Errorf("Expected 2s exposures, got %f", result.Plan.ImageDuration)
	}
	assertEmptyDir(t, fx.cfg.TempDir)
}

func TestRunPlannerFailureSkipsBackend(t *testing.T) {
	tests := []struct {
		name    string
		images  int
		audio   float64
		wantErr error
		hint    string
	}{
		{"too many images", 5, 5, timeline.ErrTooManyImages, "at most 3"},
		{"audio too short", 2, 2, timeline.ErrAudioTooShort, "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.audio)
			images, audio := writeInputs(t, tt.images)

			_, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if errors.Is(err, ErrRenderFailed) {
				t.Error("Planner failure must not be reported as a render failure")
			}
			if n := fx.encoder.calls(); n != 0 {
				t.Errorf("Expected no backend calls, got %d", n)
			}
			if msg := Describe(err); !strings.Contains(msg, tt.hint) {
				t.Errorf("Expected %q in %q", tt.hint, msg)
			}
			assertEmptyDir(t, fx.cfg.TempDir)
			assertEmptyDir(t, fx.cfg.OutputDir)
		})
	}
}

func TestRunBackendFailure(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeEncoder)
		stage  string
		output string
	}{
		{"clip", func(f *fakeEncoder) { f.failClip = 1 }, "clips", "broken clip"},
		{"finalize", func(f *fakeEncoder) { f.failFinal = true }, "finalize", "concat failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, 10)
			tt.setup(fx.encoder)
			images, audio := writeInputs(t, 3)

			_, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
			if !errors.Is(err, ErrRenderFailed) {
				t.Fatalf("Expected render failure, got %v", err)
			}
			var rErr *Error
			if !errors.As(err, &rErr) || rErr.Stage != tt.stage {
				t.Errorf("Expected stage %s, got %v", tt.stage, err)
			}
			if !strings.Contains(err.Error(), tt.output) {
				t.Errorf("Expected backend output in %q", err.Error())
			}
			assertEmptyDir(t, fx.cfg.OutputDir)
			assertEmptyDir(t, fx.cfg.TempDir)
		})
	}
}

func TestRunProbeFailure(t *testing.T) {
	fx := newFixture(t, 0)
	fx.pipeline.prober = fakeProber{err: errors.New("ffprobe: invalid data found")}
	images, audio := writeInputs(t, 2)

	_, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("Expected render failure, got %v", err)
	}
	if fx.encoder.calls() != 0 {
		t.Error("Expected no backend calls")
	}
}

func TestRunEffectOverrides(t *testing.T) {
	fx := newFixture(t, 10)
	images, audio := writeInputs(t, 3)
	effects := config.EffectConfig{Transition: 0, FadeIn: 0, FadeOut: 0}

	result, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio, Effects: &effects})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, c := range fx.encoder.clips {
		if c.IsDissolve() {
			t.Errorf("Expected hard cuts, clip %d dissolves", c.Index)
		}
	}
	if math.Abs(result.Plan.ImageDuration-10.0/3) > 1e-9 {
		t.Errorf("Expected %f, got %f", 10.0/3, result.Plan.ImageDuration)
	}
}

func TestRunPublishes(t *testing.T) {
	fx := newFixture(t, 10)
	images, audio := writeInputs(t, 2)

	fx.pipeline.WithPublisher(fakePublisher{url: "https://bucket.example/video.mp4"})
	result, err := fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.URL != "https://bucket.example/video.mp4" {
		t.Errorf("Expected published URL, got %q", result.URL)
	}

	fx.pipeline.WithPublisher(fakePublisher{err: errors.New("access denied")})
	result, err = fx.pipeline.Run(context.Background(), Request{Images: images, Audio: audio})
	if err != nil {
		t.Fatalf("Publish failure must not fail the render: %v", err)
	}
	if result.URL != "" {
		t.Errorf("Expected no URL, got %q", result.URL)
	}
}

func TestValidate(t *testing.T) {
	images, audio := writeInputs(t, 1)
	defaults := config.DefaultEffects()
	crowd := make([]source.Blob, timeline.MaxImageCount+1)
	for i := range crowd {
		crowd[i] = source.FileBlob{Path: "a.png"}
	}

	tests := []struct {
		name    string
		req     Request
		effects config.EffectConfig
		field   string
	}{
		{"no images", Request{Audio: audio}, defaults, "images"},
		{"no audio", Request{Images: images}, defaults, "audio"},
		{"too many images", Request{Images: crowd, Audio: audio}, defaults, "images"},
		{"bad image", Request{Images: []source.Blob{source.FileBlob{Path: "clip.gif"}}, Audio: audio}, defaults, "images"},
		{"bad audio", Request{Images: images, Audio: source.FileBlob{Path: "song.ogg"}}, defaults, "audio"},
		{"negative fade", Request{Images: images, Audio: audio}, config.EffectConfig{Transition: 1, FadeIn: -1, FadeOut: 1}, "fade_in"},
		{"nan transition", Request{Images: images, Audio: audio}, config.EffectConfig{Transition: math.NaN()}, "transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req, tt.effects)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}

	if err := Validate(Request{Images: images, Audio: audio}, defaults); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}
}
