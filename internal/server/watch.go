package server

import (
	"context"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	writeTimeout      = 10 * time.Second
	heartbeatInterval = 15 * time.Second
)

// handleDashboardWatch streams the dashboard over a websocket: once on
// connect and again after every debounced refresh.
func (s *Server) handleDashboardWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "accept dashboard websocket", slog.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	refresh, unsubscribe := s.engine.Hub.Subscribe()
	defer unsubscribe()

	// The client never sends; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	heartbeat := s.clock.NewTicker(heartbeatInterval, "dashboard", "heartbeat")
	defer heartbeat.Stop()

	if err := s.sendDashboard(ctx, conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh:
			if err := s.sendDashboard(ctx, conn); err != nil {
				s.logger.Debug(ctx, "dashboard websocket closed", slog.Error(err))
				return
			}
		case <-heartbeat.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) sendDashboard(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, s.engine.Dashboard())
}
