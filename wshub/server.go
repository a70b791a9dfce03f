package wshub

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Server accepts WebSocket upgrades on two listeners (IPv4 and IPv6, same
// port) and hands each connection to the Hub as a Session.
type Server struct {
	Hub      *Hub
	Upgrader websocket.Upgrader
}

// NewServer creates a Server backed by hub.
func NewServer(hub *Hub) *Server {
	return &Server{
		Hub: hub,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (srv *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s := newSession(srv.Hub, conn)
	go s.serve(r.Context())
}

// ListenAndServe binds the IPv4 and IPv6 listeners for port and serves
// WebSocket upgrades on both until ctx is canceled. It returns once both
// listeners have stopped.
func (srv *Server) ListenAndServe(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleUpgrade)

	ln4, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return errors.WithMessage(err, "wshub: listen ipv4")
	}
	ln6, err := net.Listen("tcp6", fmt.Sprintf("[::]:%d", port))
	if err != nil {
		ln4.Close()
		return errors.WithMessage(err, "wshub: listen ipv6")
	}

	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Serve(ln4) }()
	go func() { errCh <- httpSrv.Serve(ln6) }()

	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && err != http.ErrServerClosed && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
