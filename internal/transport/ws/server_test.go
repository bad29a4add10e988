package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelsculpt.ai/internal/config"
	"voxelsculpt.ai/internal/persistence/chunkdb"
	"voxelsculpt.ai/internal/protocol"
	"voxelsculpt.ai/internal/session"
)

func startSession(t *testing.T) *session.Session {
	t.Helper()
	cfg := config.Defaults()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "editor.db")
	cfg.Seed = config.SeedSpec{Shape: "box", Size: [3]int{8, 8, 8}, Material: 2}
	cfg.Normalize()

	quiet := log.New(io.Discard, "", 0)
	db, err := chunkdb.Open(context.Background(), cfg.DatabasePath, chunkdb.Options{ChunkShape: cfg.ChunkShape, Workers: 2, Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := session.New(cfg, db, session.Options{Logger: quiet})
	require.NoError(t, err)
	require.NoError(t, s.Seed())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func dial(t *testing.T, s *session.Session) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(s, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func readType(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		base, err := protocol.DecodeBase(msg)
		require.NoError(t, err)
		if base.Type == typ {
			require.NoError(t, json.Unmarshal(msg, v))
			return
		}
	}
}

func TestHandshakeAndFrames(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "test-viewer",
		Capabilities:    protocol.HelloCapabilities{Codecs: []string{"s2"}},
	})
	var welcome protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &welcome)
	assert.NotEmpty(t, welcome.SessionID)
	assert.Equal(t, "s2", welcome.Codec)
	assert.Equal(t, 16, welcome.ChunkShape)

	// the seeded box arrives in the first frames
	var frame protocol.FrameMsg
	readType(t, conn, protocol.TypeFrame, &frame)
	require.NotEmpty(t, frame.Chunks)
	assert.Equal(t, "s2", frame.Chunks[0].Codec)

	send(t, conn, protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Keys:            protocol.ButtonEdges{Pressed: []string{"T"}, Released: []string{"T"}},
	})
	for i := 0; ; i++ {
		require.Less(t, i, 600, "tool never switched")
		var f protocol.FrameMsg
		readType(t, conn, protocol.TypeFrame, &f)
		if f.Tool == "terraform" {
			break
		}
	}
}

func TestUnknownButtonReportsError(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "v"})
	var welcome protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &welcome)

	send(t, conn, protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Keys:            protocol.ButtonEdges{Pressed: []string{"HYPER"}},
	})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	assert.Equal(t, protocol.ErrBadInput, e.Code)
}

func TestMalformedInputReportsError(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "v"})
	var welcome protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &welcome)

	send(t, conn, protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: "0.9"})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	assert.Equal(t, protocol.ErrProtoVersion, e.Code)

	send(t, conn, protocol.BaseMessage{Type: "PING", ProtocolVersion: protocol.Version})
	readType(t, conn, protocol.TypeError, &e)
	assert.Equal(t, protocol.ErrProtoBadRequest, e.Code)
}

func TestHandshakeRejectsWrongVersion(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1", ClientName: "old"})
	var e protocol.ErrorMsg
	readType(t, conn, protocol.TypeError, &e)
	assert.Equal(t, protocol.ErrProtoVersion, e.Code)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "err=%v", err)
}

func TestStoppedSessionClosesConnections(t *testing.T) {
	s := startSession(t)
	conn := dial(t, s)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "v"})
	var welcome protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &welcome)

	s.Stop()
	<-s.Done()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "err=%v", err)

	late := dial(t, s)
	send(t, late, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "late"})
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "err=%v", err)
}
