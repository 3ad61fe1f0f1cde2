package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/app/orch"
	"github.com/hwos/streamrelay/internal/core"
)

type OfferRequest struct {
	SDP         string `json:"sdp" binding:"required"`
	Type        string `json:"type" binding:"required"`
	StreamKey   string `json:"streamKey" binding:"required"`
	Broadcaster bool   `json:"broadcaster"`
}

type AnswerResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// HandleOffer negotiates a peer session for a posted SDP offer. The session
// lives on ctx, the server lifetime, not the request context.
func HandleOffer(ctx context.Context, o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
			return
		}
		if req.Type != "offer" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected an offer"})
			return
		}

		answer, err := o.HandleOffer(ctx, req.SDP, core.StreamKey(req.StreamKey), req.Broadcaster)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, core.ErrInvalidOffer):
				status = http.StatusBadRequest
			case errors.Is(err, core.ErrStreamKeyRejected):
				status = http.StatusForbidden
			case errors.Is(err, core.ErrBroadcastActive):
				status = http.StatusConflict
			}
			log.Warn().Err(err).
				Str("module", "adapters.http").
				Str("stream_key", req.StreamKey).
				Bool("broadcaster", req.Broadcaster).
				Int("status", status).
				Msg("offer rejected")
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, AnswerResponse{SDP: answer.SDP, Type: answer.Type.String()})
	}
}
