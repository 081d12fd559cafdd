package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/opcr"
	"github.com/trezcool/sdoims/core/ticket"
	"github.com/trezcool/sdoims/services/pubsub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// channelCapabilities maps each broadcast channel to the capability needed to subscribe to it.
var channelCapabilities = map[string]string{
	ticket.Channel: core.Capability(ticket.Resource, core.ActionAccess),
	opcr.Channel:   core.Capability(opcr.Resource, core.ActionAccess),
}

// Welcome is the first message of a realtime connection.
// Clients send SocketID back in the X-Socket-ID header so their own changes are not echoed.
type Welcome struct {
	SocketID string `json:"socket_id"`
	Channel  string `json:"channel"`
}

type realtimeApi struct {
	hub      *pubsub.Hub
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerRealtimeAPI(g *echo.Group, conf *core.Config, deps *Deps, logger core.Logger) {
	allowed := make(map[string]bool, len(conf.Server.AllowedOrigins))
	for _, o := range conf.Server.AllowedOrigins {
		allowed[o] = true
	}
	api := realtimeApi{
		hub:    deps.Hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}

	// browsers cannot set headers on websocket requests
	jwt := middleware.JWTWithConfig(jwtConfig(conf, "query:token"))
	g.GET("/realtime", api.subscribe, jwt, actorMiddleware(deps.Users))
}

func (api *realtimeApi) subscribe(ctx echo.Context) error {
	channel := ctx.QueryParam("channel")
	capability, ok := channelCapabilities[channel]
	if !ok {
		return errHttpNotFound
	}
	if err := getContextActor(ctx).Authorize(capability); err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader has already replied
	}
	defer func() { _ = conn.Close() }()

	sub := api.hub.Subscribe(channel, ctx.QueryParam("socket_id"))
	defer sub.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err = conn.WriteJSON(Welcome{SocketID: sub.ID, Channel: channel}); err != nil {
		return nil
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteJSON(ev); err != nil {
				api.logger.Debug("realtime: write failed: " + err.Error())
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
