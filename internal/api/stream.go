package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stock-backfill/internal/queue"
)

const (
	// DefaultStreamInterval is the status push period.
	DefaultStreamInterval = 5 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StatusStream pushes queue status snapshots over a websocket.
type StatusStream struct {
	queue    *queue.Service
	interval time.Duration
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewStatusStream creates a stream handler.
func NewStatusStream(q *queue.Service, interval time.Duration, log zerolog.Logger) *StatusStream {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StatusStream{
		queue:    q,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection, sends a snapshot immediately and then
// every interval until the peer disconnects.
func (s *StatusStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	push := time.NewTicker(s.interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.writeStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-push.C:
			if err := s.writeStatus(conn); err != nil {
				s.log.Debug().Err(err).Msg("status push failed")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *StatusStream) writeStatus(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s.queue.Status())
}

// readPump discards inbound messages and signals when the peer goes away.
func (s *StatusStream) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
