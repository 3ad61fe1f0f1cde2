package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/hwos/streamrelay/internal/adapters/http"
	"github.com/hwos/streamrelay/internal/adapters/rtc"
	wschat "github.com/hwos/streamrelay/internal/adapters/signal"
	"github.com/hwos/streamrelay/internal/app"
	"github.com/hwos/streamrelay/internal/app/orch"
	"github.com/hwos/streamrelay/internal/app/sfu"
	"github.com/hwos/streamrelay/internal/config"
	"github.com/hwos/streamrelay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	streams := sfu.NewBroadcastMap()
	orchestrator := &orch.Orchestrator{
		Registry: app.NewRegistry(streams),
		Streams:  streams,
		Rooms:    app.NewRoomManager(),
		Validate: core.AllowAllKeys,
		NewMedia: func(sid core.SessionID) (core.MediaConnection, error) {
			return rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(), sid)
		},
	}

	chat := wschat.NewChatController(
		orchestrator.Rooms,
		wschat.NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval),
	)
	chat.ReadLimit = cfg.ReadLimit
	chat.SendBuffer = cfg.SendBuffer
	chat.PingPeriod = cfg.PingPeriod

	r := router.SetupRouter(ctx, cfg, orchestrator, chat)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	tlsCfg, err := config.LoadTLS(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		log.Warn().Err(err).Msg("TLS materials unusable, falling back to plaintext")
	}

	go func() {
		if tlsCfg != nil {
			srv.TLSConfig = tlsCfg
			log.Info().Str("addr", addr).Msg("stream relay started (TLS)")
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("server error")
			}
			return
		}
		log.Warn().Str("addr", addr).Msg("stream relay started without TLS; signaling is unencrypted")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hard stop for media: close every session, then clear the broadcast map.
	orchestrator.Shutdown(shutdownCtx)
	log.Info().Msg("Server exited")
}
