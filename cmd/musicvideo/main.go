package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/logging"
	"github.com/letsgo999/music-video-maker/internal/system"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "musicvideo",
	Short:         "musicvideo - turn still images and a song into a music video",
	Long:          "Lays images out over the length of an audio track with cross-dissolves and fades, then renders the result with ffmpeg.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("failed to load .env")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		system.InitResourceLimits()

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./musicvideo.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
}

func addEffectFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("transition", 1.0, "cross-dissolve duration in seconds (0 for hard cuts)")
	cmd.Flags().Float64("fade-in", 1.0, "fade from black at the start, in seconds")
	cmd.Flags().Float64("fade-out", 1.0, "fade to black at the end, in seconds")
}

// applyEffectFlags overrides configured effects with flags set explicitly.
func applyEffectFlags(cmd *cobra.Command, effects *config.EffectConfig) {
	flags := cmd.Flags()
	if flags.Changed("transition") {
		effects.Transition, _ = flags.GetFloat64("transition")
	}
	if flags.Changed("fade-in") {
		effects.FadeIn, _ = flags.GetFloat64("fade-in")
	}
	if flags.Changed("fade-out") {
		effects.FadeOut, _ = flags.GetFloat64("fade-out")
	}
}
