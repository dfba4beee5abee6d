package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/letsgo999/music-video-maker/internal/render"
	"github.com/letsgo999/music-video-maker/internal/source"
	"github.com/letsgo999/music-video-maker/internal/storage"
	"github.com/letsgo999/music-video-maker/internal/timeline"
)

const qrSize = 256

// RenderResponse is returned once the video exists.
type RenderResponse struct {
	ID            string  `json:"id"`
	Duration      float64 `json:"duration"`
	ImageDuration float64 `json:"image_duration"`
	DownloadURL   string  `json:"download_url"`
	QRURL         string  `json:"qr_url"`
	URL           string  `json:"url,omitempty"`
}

func (s *Server) RegisterRenderRoutes(r *gin.Engine) {
	r.POST("/api/renders", s.handleRender)
	r.GET("/api/renders/:id/download", s.handleDownload)
	r.GET("/api/renders/:id/qr", s.handleQR)
}

// handleRender accepts a multipart form with repeated "images" files, one
// "audio" file and optional transition/fade_in/fade_out seconds. It blocks
// until the video is ready.
func (s *Server) handleRender(c *gin.Context) {
	if limit := s.cfg.Server.MaxUploadMB; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit<<20)
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload both the image files and the audio file."})
		return
	}

	var req render.Request
	for _, fh := range form.File["images"] {
		req.Images = append(req.Images, source.UploadBlob{Header: fh})
	}
	if audio := form.File["audio"]; len(audio) > 0 {
		req.Audio = source.UploadBlob{Header: audio[0]}
	}

	var overrides [3]*float64
	for i, field := range []string{"transition", "fade_in", "fade_out"} {
		raw := c.PostForm(field)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			vErr := &render.ValidationError{Field: field, Reason: "must be a number of seconds"}
			c.JSON(http.StatusBadRequest, gin.H{"error": render.Describe(vErr)})
			return
		}
		overrides[i] = &v
	}
	effects := mergeEffects(s.cfg.Effects, overrides[0], overrides[1], overrides[2])
	req.Effects = &effects

	result, err := s.renderer.Run(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Msg("render failed")
		}
		c.JSON(status, gin.H{"error": render.Describe(err)})
		return
	}

	c.JSON(http.StatusOK, RenderResponse{
		ID:            result.ID,
		Duration:      result.Plan.AudioDuration,
		ImageDuration: result.Plan.ImageDuration,
		DownloadURL:   downloadPath(result.ID),
		QRURL:         fmt.Sprintf("/api/renders/%s/qr", result.ID),
		URL:           result.URL,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	path, ok := s.lookup(c)
	if !ok {
		return
	}
	c.FileAttachment(path, storage.DownloadName)
}

// handleQR encodes the absolute download link so the video can be fetched
// from a phone.
func (s *Server) handleQR(c *gin.Context) {
	if _, ok := s.lookup(c); !ok {
		return
	}

	png, err := qrcode.Encode(s.absoluteURL(c, downloadPath(c.Param("id"))), qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) lookup(c *gin.Context) (string, bool) {
	path, err := s.videos.Path(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return "", false
	}
	return path, true
}

func (s *Server) absoluteURL(c *gin.Context, path string) string {
	if base := s.cfg.Server.PublicURL; base != "" {
		return strings.TrimRight(base, "/") + path
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if fwd := c.GetHeader("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, path)
}

func downloadPath(id string) string {
	return fmt.Sprintf("/api/renders/%s/download", id)
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var vErr *render.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, timeline.ErrAudioTooShort),
		errors.Is(err, timeline.ErrTooManyImages),
		errors.Is(err, timeline.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
