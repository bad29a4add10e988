// Package ws binds renderer/input hosts to an editing session over
// WebSocket. A host says HELLO, gets WELCOME, then streams INPUT and
// receives one FRAME per tick.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelsculpt.ai/internal/protocol"
	"voxelsculpt.ai/internal/session"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	// outQueue frames may wait for a slow host before the session skips it.
	outQueue = 8
)

// Session is the editor loop a connection is bound to.
type Session interface {
	Join() chan<- session.JoinRequest
	Leave() chan<- string
	Inbox() chan<- session.InputEnvelope
	// Done is closed once the session stops serving its channels.
	Done() <-chan struct{}
}

type Server struct {
	sess Session
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(sess Session, logger *log.Logger) *Server {
	return &Server{
		sess: sess,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// peer is one joined connection. Only writeLoop writes to conn after the
// handshake.
type peer struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done <-chan struct{}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		p := s.handshake(ctx, conn)
		if p == nil {
			return
		}
		go p.writeLoop(ctx, cancel)
		s.readLoop(ctx, p)

		s.leave(p.id)
		s.log.Printf("ws client %s disconnected", p.id)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *peer {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	var hello protocol.HelloMsg
	if err := protocol.Decode(msg, protocol.TypeHello, &hello); err != nil {
		_ = writeJSON(conn, protocol.NewError(protocol.CodeFor(err), err.Error()))
		closeWith(conn, "bad HELLO")
		return nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "viewer"
	}

	out := make(chan []byte, outQueue)
	resp := make(chan protocol.WelcomeMsg, 1)
	req := session.JoinRequest{
		ClientName: hello.ClientName,
		Codecs:     hello.Capabilities.Codecs,
		Mesh:       hello.Capabilities.Mesh,
		Out:        out,
		Resp:       resp,
	}
	var welcome protocol.WelcomeMsg
	select {
	case s.sess.Join() <- req:
	case <-s.sess.Done():
		closeGoingAway(conn)
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case welcome = <-resp:
	case <-s.sess.Done():
		closeGoingAway(conn)
		return nil
	}

	if err := writeJSON(conn, welcome); err != nil {
		s.leave(welcome.SessionID)
		return nil
	}
	s.log.Printf("ws client %s (%s) connected, codec %s", welcome.SessionID, hello.ClientName, welcome.Codec)
	return &peer{id: welcome.SessionID, conn: conn, out: out, done: s.sess.Done()}
}

// leave deregisters id unless the session has already stopped.
func (s *Server) leave(id string) {
	select {
	case s.sess.Leave() <- id:
	case <-s.sess.Done():
	}
}

func (p *peer) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			// unblocks the reader
			closeGoingAway(p.conn)
			_ = p.conn.Close()
			cancel()
			return
		case b, ok := <-p.out:
			if !ok {
				return
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}
}

// readLoop forwards INPUT until the connection fails or ctx ends. Other
// messages are answered with an ERROR and dropped.
func (s *Server) readLoop(ctx context.Context, p *peer) {
	for ctx.Err() == nil {
		_ = p.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var in protocol.InputMsg
		if err := protocol.Decode(msg, protocol.TypeInput, &in); err != nil {
			p.reject(ctx, protocol.NewError(protocol.CodeFor(err), err.Error()))
			continue
		}
		select {
		case s.sess.Inbox() <- session.InputEnvelope{ClientID: p.id, Input: in}:
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// reject queues e behind any pending frames.
func (p *peer) reject(ctx context.Context, e protocol.ErrorMsg) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case p.out <- b:
	case <-ctx.Done():
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session stopped"), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
