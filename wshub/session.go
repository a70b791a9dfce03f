package wshub

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// AuthTimeout bounds how long a new connection has to send its auth frame
// before it is dropped.
const AuthTimeout = 10 * time.Second

var sysCfgExRe = regexp.MustCompile(`^AT\^SYSCFGEX=\s*"([^"]*)"\s*,\s*""\s*,\s*""`)

type authFrame struct {
	AuthKey string `json:"auth_key"`
}

// authSuccess and authFailure are the handshake replies the client waits on
// before it may issue commands (spec §4.6/§6).
type authSuccess struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type authFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type commandResult struct {
	Success bool    `json:"success"`
	Data    *string `json:"data"`
	Error   *string `json:"error"`
}

func okResult(data string) commandResult {
	return commandResult{Success: true, Data: &data}
}

func errResult(msg string) commandResult {
	return commandResult{Success: false, Error: &msg}
}

// Session wraps one authenticated WebSocket client connection.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	Remote            string
	authenticated     bool
	lastHeartbeatSent time.Time
}

func newSession(hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 32),
		Remote: conn.RemoteAddr().String(),
	}
}

// serve authenticates the session (if required), then runs its read and
// write pumps until the connection closes. It blocks until the session
// ends.
func (s *Session) serve(ctx context.Context) {
	if s.hub.AuthKey != "" {
		if !s.authenticate() {
			s.conn.Close()
			return
		}
	}
	s.authenticated = true

	s.hub.register <- s

	done := make(chan struct{})
	go func() {
		s.writePump()
		close(done)
	}()
	s.readPump(ctx)
	s.hub.unregister <- s
	<-done
}

func (s *Session) authenticate() bool {
	s.conn.SetReadDeadline(time.Now().Add(AuthTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return false
	}
	var frame authFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.writeAuthFailure("invalid auth frame")
		return false
	}
	s.conn.SetReadDeadline(time.Time{})
	if frame.AuthKey != s.hub.AuthKey {
		s.writeAuthFailure("invalid auth key")
		return false
	}
	s.writeAuthSuccess()
	return true
}

func (s *Session) writeAuthSuccess() {
	data, _ := json.Marshal(authSuccess{Success: true, Message: "authenticated"})
	s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) writeAuthFailure(reason string) {
	data, _ := json.Marshal(authFailure{Error: reason, Message: reason})
	s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) readPump(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.handleText(ctx, strings.TrimSpace(string(data)))
	}
}

func (s *Session) handleText(ctx context.Context, text string) {
	switch {
	case text == "ping":
		s.reply([]byte("pong"))
		return

	case text == "AT+CONNECT?":
		s.reply(encodeResult(okResult("+CONNECT: 0\r\nOK")))
		return

	case sysCfgExRe.MatchString(text):
		m := sysCfgExRe.FindStringSubmatch(text)
		rewritten := `AT^SYSCFGEX="` + m[1] + `","",""`
		s.forward(ctx, rewritten)
		return

	default:
		s.forward(ctx, text)
	}
}

func (s *Session) forward(ctx context.Context, cmd string) {
	if s.hub.Sender == nil {
		s.reply(encodeResult(errResult("no modem connection")))
		return
	}
	rsp := s.hub.Sender.Send(ctx, strings.TrimPrefix(cmd, "AT"))
	if rsp.Err != nil {
		s.reply(encodeResult(errResult(rsp.Err.Error())))
		return
	}
	body := strings.Join(stripEcho(rsp.Body, cmd), "\n")
	if strings.Contains(strings.ToUpper(body), "ERROR") {
		s.reply(encodeResult(errResult(body)))
		return
	}
	s.reply(encodeResult(okResult(body)))
}

// stripEcho removes a leading line equal to the command itself, present
// when the modem is not in No-Echo mode.
func stripEcho(body []string, cmd string) []string {
	if len(body) > 0 && body[0] == cmd {
		return body[1:]
	}
	return body
}

func encodeResult(r commandResult) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"success":false,"data":null,"error":"internal encoding error"}`)
	}
	return data
}

func (s *Session) reply(data []byte) {
	select {
	case s.send <- data:
	default:
	}
}

func (s *Session) writePump() {
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
