package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/letsgo999/music-video-maker/internal/api"
	"github.com/letsgo999/music-video-maker/internal/config"
	"github.com/letsgo999/music-video-maker/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, or :$PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	pipeline, store, err := newPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(cfg, pipeline, store, logging.WithComponent("api")).NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-cmd.Context().Done():
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
