package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/render"
)

// PlanRequest asks for a timeline without rendering anything. Omitted
// effect durations fall back to the configured defaults. AudioDuration is a
// pointer so that zero reaches the planner instead of reading as missing.
type PlanRequest struct {
	ImageCount    int      `json:"image_count" binding:"required"`
	AudioDuration *float64 `json:"audio_duration" binding:"required"`
	Transition    *float64 `json:"transition"`
	FadeIn        *float64 `json:"fade_in"`
	FadeOut       *float64 `json:"fade_out"`
}

func (s *Server) RegisterPlanRoutes(r *gin.Engine) {
	r.POST("/api/plan", s.handlePlan)
}

func (s *Server) handlePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	effects := mergeEffects(s.cfg.Effects, req.Transition, req.FadeIn, req.FadeOut)
	if err := effects.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := render.PlanTimeline(req.ImageCount, *req.AudioDuration, effects)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": render.Describe(err)})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func mergeEffects(base config.EffectConfig, transition, fadeIn, fadeOut *float64) config.EffectConfig {
	if transition != nil {
		base.Transition = *transition
	}
	if fadeIn != nil {
		base.FadeIn = *fadeIn
	}
	if fadeOut != nil {
		base.FadeOut = *fadeOut
	}
	return base
}
