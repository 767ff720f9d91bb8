package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"campusfind/internal/app/dto"
	"campusfind/internal/app/inbox"
	domainchat "campusfind/internal/domain/chat"
	domainitems "campusfind/internal/domain/items"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

type InboxHTTP interface {
	Stream(c *gin.Context)
}

// InboxHandler upgrades to a websocket and streams each aggregator snapshot
// as JSON. Closing the socket (or the request context) tears the session and
// all of its watches down.
type InboxHandler struct {
	ItemSets domainitems.Watcher
	Threads  domainchat.Watcher
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

func NewInboxHandler(itemSets domainitems.Watcher, threads domainchat.Watcher, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{
		ItemSets: itemSets,
		Threads:  threads,
		Logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *InboxHandler) Stream(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	session, err := inbox.Open(ctx, p.ID, h.ItemSets, h.Threads, h.Logger)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("inbox session open failed", "user_id", p.ID, "error", err)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "inbox unavailable"),
			time.Now().Add(wsWriteTimeout))
		return
	}
	defer session.Close()

	// Reader goroutine: the client never sends data, but reading surfaces
	// close frames and dead connections.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case list, ok := <-session.Updates():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(dto.MapInbox(list)); err != nil {
				if h.Logger != nil {
					h.Logger.Debug("inbox push failed", "user_id", p.ID, "error", err)
				}
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ InboxHTTP = (*InboxHandler)(nil)
