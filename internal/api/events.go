package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"studybuddy/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSessionEvents streams session snapshots over a websocket. Updates
// are throttled to one per EventInterval; bursts collapse to the newest.
func (s *Server) handleSessionEvents(c *gin.Context) {
	sess, ok := s.lookupSession(c)
	if !ok {
		s.fail(c, errNoSession)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Str("session", sess.ID).Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readPump(conn, cancel)

	s.logger.Debug().Str("session", sess.ID).Msg("WebSocket client connected")
	s.writePump(ctx, conn, updates, rate.NewLimiter(rate.Every(s.opts.EventInterval), 1))
	s.logger.Debug().Str("session", sess.ID).Msg("WebSocket client disconnected")
}

// readPump drains client frames so control messages are processed, and
// cancels ctx once the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan session.Snapshot, limiter *rate.Limiter) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			snap, open := latest(snap, updates)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			if !open {
				return
			}
		}
	}
}

// latest drains queued snapshots and returns the newest one, reporting
// whether the channel is still open.
func latest(snap session.Snapshot, updates <-chan session.Snapshot) (session.Snapshot, bool) {
	for {
		select {
		case next, ok := <-updates:
			if !ok {
				return snap, false
			}
			snap = next
		default:
			return snap, true
		}
	}
}
