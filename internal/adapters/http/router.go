package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/adapters/signal"
	"github.com/hwos/streamrelay/internal/app/orch"
	"github.com/hwos/streamrelay/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the signaling endpoint, the chat channel and the static
// pages. ctx is the server lifetime: sessions negotiated here outlive the
// requests that created them.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, chat *signal.ChatController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StreamRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/broadcast", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/broadcast.html")
	})
	r.GET("/view/:streamKey", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/viewer.html")
	})

	r.POST("/offer", HandleOffer(ctx, o))
	r.GET("/ws", func(c *gin.Context) {
		chat.HandleChannel(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
