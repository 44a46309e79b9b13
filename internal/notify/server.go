package notify

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local companion endpoint, same trust domain as the TUI
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the hub at /ws and the controller snapshot at /api/state.
type Server struct {
	hub     *Hub
	stateFn func() interface{}
	log     *logrus.Logger
	httpSrv *http.Server
}

// NewServer creates a notify server bound to addr. stateFn supplies the
// JSON-serializable controller snapshot.
func NewServer(addr string, hub *Hub, stateFn func() interface{}, log *logrus.Logger) *Server {
	s := &Server{hub: hub, stateFn: stateFn, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/state", s.handleState)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start runs the server in a goroutine. Listen errors are logged, not fatal.
func (s *Server) Start() {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Warn("notify server stopped")
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	_ = s.httpSrv.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.hub.AddClient(conn)

	// Drain reads so we notice closes; clients only receive.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.RemoveClient(conn)
				return
			}
		}
	}()
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stateFn()); err != nil {
		s.log.WithError(err).Warn("state encode failed")
	}
}
