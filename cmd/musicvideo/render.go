package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/logging"
	"github.com/letsgo999/music-video-maker/internal/render"
	"github.com/letsgo999/music-video-maker/internal/source"
	"github.com/letsgo999/music-video-maker/internal/storage"
	"github.com/letsgo999/music-video-maker/internal/system"
	"github.com/letsgo999/music-video-maker/internal/video"
)

var renderCmd = &cobra.Command{
	Use:   "render [images or directories...]",
	Short: "Render a music video from images and an audio file",
	Long: "Render a music video. Images are ordered by filename. Without arguments the images in " +
		"<input_dir>/images and the newest audio file in <input_dir>/audio are used.",
	RunE: runRender,
}

func init() {
	registerRenderFlags(renderCmd)
}

func registerRenderFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("audio", "", "audio file (default: newest file in <input_dir>/audio)")
	f.String("output-dir", "", "directory for finished videos")
	f.String("preset", "", "frame preset: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	f.Int("width", 0, "frame width")
	f.Int("height", 0, "frame height")
	f.Int("fps", 0, "frames per second")
	f.String("encoder", "", "H.264 encoder: libx264, h264_nvenc, h264_videotoolbox or auto")
	f.Int("quality", 0, "quality (0 = encoder default; x264 CRF, NVENC CQ, VideoToolbox kbit/s / 100)")
	f.Int("workers", 0, "parallel clip encoders (0 = auto)")
	addEffectFlags(cmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())
	if err := applyRenderFlags(cmd, cfg); err != nil {
		return err
	}

	ensureDirs(filepath.Join(cfg.InputDir, "images"), filepath.Join(cfg.InputDir, "audio"), cfg.OutputDir)

	images, err := collectImages(args, filepath.Join(cfg.InputDir, "images"))
	if err != nil {
		return err
	}

	audioPath, _ := cmd.Flags().GetString("audio")
	if audioPath == "" {
		audioPath, err = system.FindLatestAudio(filepath.Join(cfg.InputDir, "audio"))
		if err != nil {
			return fmt.Errorf("no audio given and none found: %w", err)
		}
		log.Info().Str("audio", audioPath).Msg("using newest audio file")
	}

	pipeline, _, err := newPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	log.Info().Int("images", len(images)).Str("audio", filepath.Base(audioPath)).Msg("rendering")
	result, err := pipeline.Run(cmd.Context(), render.Request{
		Images: source.FileBlobs(images),
		Audio:  source.FileBlob{Path: audioPath},
	})
	if err != nil {
		log.Error().Err(err).Msg(render.Describe(err))
		return err
	}

	fmt.Println(result.Path)
	if result.URL != "" {
		fmt.Println(result.URL)
	}
	return nil
}

func applyRenderFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	applyEffectFlags(cmd, &cfg.Effects)

	if v, _ := flags.GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}

	switch preset, _ := flags.GetString("preset"); preset {
	case "":
	case "16:9":
		cfg.Video.Width, cfg.Video.Height = 1280, 720
		cfg.Video.AutoAspect = false
	case "9:16":
		cfg.Video.Width, cfg.Video.Height = 720, 1280
		cfg.Video.AutoAspect = false
	case "4:5":
		cfg.Video.Width, cfg.Video.Height = 1080, 1350
		cfg.Video.AutoAspect = false
	default:
		return fmt.Errorf("unknown preset %q", preset)
	}

	if flags.Changed("width") {
		cfg.Video.Width, _ = flags.GetInt("width")
		cfg.Video.AutoAspect = false
	}
	if flags.Changed("height") {
		cfg.Video.Height, _ = flags.GetInt("height")
	}
	if flags.Changed("fps") {
		cfg.Video.FPS, _ = flags.GetInt("fps")
	}
	if v, _ := flags.GetString("encoder"); v != "" {
		cfg.Video.Encoder = v
	}
	if flags.Changed("quality") {
		cfg.Video.Quality, _ = flags.GetInt("quality")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	return cfg.Validate()
}

// ensureDirs creates the working directories. Failures are only logged;
// the step that needs the directory reports the real error.
func ensureDirs(dirs ...string) {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			log.Warn().Err(err).Str("dir", d).Msg("could not create directory")
		}
	}
}

// collectImages expands directory arguments into the images they contain.
func collectImages(args []string, defaultDir string) ([]string, error) {
	if len(args) == 0 {
		args = []string{defaultDir}
	}

	var images []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			images = append(images, arg)
			continue
		}
		found, err := system.FindImages(arg)
		if err != nil {
			return nil, err
		}
		images = append(images, found...)
	}
	return images, nil
}

// newPipeline wires the ffmpeg backend, the output store and, when a bucket
// is configured, the S3 publisher.
func newPipeline(ctx context.Context, cfg *config.Config) (*render.Pipeline, *storage.LocalStore, error) {
	store, err := storage.NewLocalStore(cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	encoder := video.NewFFmpegEncoder(ctx, cfg.Video, logging.WithComponent("video"))
	pipeline := render.NewPipeline(cfg, encoder, system.FFProbe{}, store, logging.WithComponent("render"))

	if cfg.S3.Bucket != "" {
		pub, err := storage.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		pipeline.WithPublisher(pub)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("publishing to S3")
	}
	return pipeline, store, nil
}
