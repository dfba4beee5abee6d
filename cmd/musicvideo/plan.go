package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/render"
	"github.com/letsgo999/music-video-maker/internal/system"
	"github.com/letsgo999/music-video-maker/internal/timeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the timeline for N images without rendering",
	RunE:  runPlan,
}

var planCheckCmd = &cobra.Command{
	Use:   "check <plan.yaml>",
	Short: "Verify that a saved plan matches its images, audio and effects",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanCheck,
}

func init() {
	planCmd.AddCommand(planCheckCmd)

	f := planCmd.Flags()
	f.Int("count", 0, "number of images")
	f.String("audio", "", "audio file to take the duration from")
	f.Float64("audio-duration", 0, "audio duration in seconds")
	f.String("out", "", "write the plan YAML to this file instead of stdout")
	planCmd.MarkFlagRequired("count")
	planCmd.MarkFlagsMutuallyExclusive("audio", "audio-duration")
	planCmd.MarkFlagsOneRequired("audio", "audio-duration")
	addEffectFlags(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())
	effects := cfg.Effects
	applyEffectFlags(cmd, &effects)

	count, _ := cmd.Flags().GetInt("count")
	duration, _ := cmd.Flags().GetFloat64("audio-duration")
	if audio, _ := cmd.Flags().GetString("audio"); audio != "" {
		d, err := system.FFProbe{}.Duration(cmd.Context(), audio)
		if err != nil {
			return err
		}
		duration = d
	}

	plan, err := render.PlanTimeline(count, duration, effects)
	if err != nil {
		log.Error().Err(err).Msg(render.Describe(err))
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return timeline.EncodePlan(os.Stdout, plan)
	}
	if err := timeline.WritePlan(plan, out); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	log.Info().Str("path", out).Float64("image_duration", plan.ImageDuration).Msg("plan written")
	return nil
}

func runPlanCheck(cmd *cobra.Command, args []string) error {
	plan, err := timeline.ReadPlan(args[0])
	if err != nil {
		log.Error().Err(err).Str("path", args[0]).Msg("plan check failed")
		return err
	}
	log.Info().
		Str("path", args[0]).
		Int("images", plan.ImageCount).
		Float64("image_duration", plan.ImageDuration).
		Msg("plan is consistent")
	return nil
}
