package ws

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/supportchat/internal/api/middleware"
	"github.com/immxrtalbeast/supportchat/internal/hub"
	"github.com/immxrtalbeast/supportchat/internal/presence"
	"github.com/immxrtalbeast/supportchat/internal/ratelimit"
	"github.com/immxrtalbeast/supportchat/internal/service"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 << 10
	operationWait  = 10 * time.Second
	disconnectWait = 5 * time.Second
)

type Controller struct {
	chat     service.ChatInteractor
	presence presence.Tracker
	limiter  *ratelimit.Pool
	upgrader websocket.Upgrader
	buffer   int
	log      *slog.Logger
}

func NewController(chat service.ChatInteractor, tracker presence.Tracker, limiter *ratelimit.Pool, allowedOrigins []string, buffer int, log *slog.Logger) *Controller {
	return &Controller{
		chat:     chat,
		presence: tracker,
		limiter:  limiter,
		buffer:   buffer,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Serve upgrades the request and runs the session until the client goes
// away. A bearer token on the upgrade request makes the session staff.
func (c *Controller) Serve(ctx *gin.Context) {
	const op = "api.ws.serve"

	principal, _ := middleware.Principal(ctx)

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("op", op), sl.Err(err))
		return
	}

	s := &session{
		ctrl:     c,
		conn:     conn,
		endpoint: hub.NewEndpoint(principal, c.buffer),
		ctx:      context.WithoutCancel(ctx.Request.Context()),
		rooms:    make(map[string]struct{}),
	}
	s.log = c.log.With(slog.String("endpoint_id", s.endpoint.ID))
	s.log.Debug("websocket connected", slog.Bool("staff", principal.IsStaff()))

	go s.writePump()
	s.readPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
