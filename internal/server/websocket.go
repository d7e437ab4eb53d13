package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// measureWebSocketHandler measures every text message as a points request
// and replies with the full report, or {"error": …}.
func (s *Server) measureWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	s.logger.Info("websocket connection established", "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	s.serveWebSocket(r.Context(), conn)
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveWebSocket(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if kind != websocket.TextMessage {
			continue
		}

		reply := s.measureMessage(ctx, data)
		if err := s.sendWebSocket(conn, reply); err != nil {
			s.logger.Error("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) measureMessage(ctx context.Context, data []byte) any {
	req, pts, err := measure.DecodePointsRequest(data)
	if err != nil {
		return ErrorResponse{Error: err.Error()}
	}
	ref, hint := req.Scale()
	rep, err := s.engine.FromPoints(ctx, pts, ref, hint)
	if err != nil {
		return ErrorResponse{Error: err.Error()}
	}
	recordMeasurement(rep)
	if req.ZoneType != "" {
		if zones, err := measure.ZoneSummary(rep, req.ZoneType); err == nil {
			rep.Zones = zones
		}
	}
	return rep
}

func (s *Server) sendWebSocket(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}
