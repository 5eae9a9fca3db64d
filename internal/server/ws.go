package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voiceboard-ai/voiceboard/internal/events"
	"github.com/voiceboard-ai/voiceboard/internal/playback"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The daemon binds to loopback; the browser board connects from a
	// file:// or localhost origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the frame format in both directions.
type wsMessage struct {
	Type     string  `json:"type"`
	PlayID   string  `json:"playId,omitempty"`
	ButtonID string  `json:"buttonId,omitempty"`
	Audio    string  `json:"audio,omitempty"` // base64 blob, server -> client
	MIMEType string  `json:"mimeType,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
	Loop     bool    `json:"loop,omitempty"`
	State    string  `json:"state,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// wsOutput streams clips to one connected browser over a websocket and
// waits for its ended/error acknowledgement. It implements
// playback.Output.
type wsOutput struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*wsHandle
	closed  bool
}

func newWSOutput(conn *websocket.Conn, logger *log.Logger) *wsOutput {
	return &wsOutput{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]*wsHandle),
	}
}

// wsHandle tracks one clip in flight on the client.
type wsHandle struct {
	out    *wsOutput
	playID string
	done   chan error
	once   sync.Once
}

func (h *wsHandle) Done() <-chan error { return h.done }

func (h *wsHandle) Stop() {
	h.out.send(wsMessage{Type: "stop", PlayID: h.playID})
	h.resolve(nil)
}

func (h *wsHandle) resolve(err error) {
	h.once.Do(func() {
		h.out.mu.Lock()
		delete(h.out.pending, h.playID)
		h.out.mu.Unlock()
		h.done <- err
	})
}

// Play pushes the clip to the browser. The handle resolves when the client
// acknowledges the clip ended or failed, or when the connection drops.
func (o *wsOutput) Play(ctx context.Context, req playback.Request) (playback.Handle, error) {
	h := &wsHandle{out: o, playID: uuid.NewString(), done: make(chan error, 1)}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, errors.New("server: playback connection closed")
	}
	o.pending[h.playID] = h
	o.mu.Unlock()

	err := o.send(wsMessage{
		Type:     "play",
		PlayID:   h.playID,
		ButtonID: req.ButtonID,
		Audio:    base64.StdEncoding.EncodeToString(req.Audio),
		MIMEType: req.MIMEType,
		Volume:   req.Volume,
		Loop:     req.Loop,
	})
	if err != nil {
		h.resolve(err)
		return nil, fmt.Errorf("server: push clip: %w", err)
	}
	return h, nil
}

func (o *wsOutput) ping() error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteMessage(websocket.PingMessage, nil)
}

func (o *wsOutput) send(msg wsMessage) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(msg)
}

// handleAck settles the pending clip a client frame refers to.
func (o *wsOutput) handleAck(msg wsMessage) {
	o.mu.Lock()
	h, ok := o.pending[msg.PlayID]
	o.mu.Unlock()
	if !ok {
		return
	}

	switch msg.Type {
	case "ended":
		h.resolve(nil)
	case "error":
		reason := msg.Error
		if reason == "" {
			reason = "client playback error"
		}
		h.resolve(errors.New(reason))
	}
}

// close fails every pending clip; the connection is gone.
func (o *wsOutput) close() {
	o.mu.Lock()
	o.closed = true
	handles := make([]*wsHandle, 0, len(o.pending))
	for _, h := range o.pending {
		handles = append(handles, h)
	}
	o.mu.Unlock()

	for _, h := range handles {
		h.resolve(errors.New("server: playback connection lost"))
	}
}

// handlePlaybackSocket upgrades the connection and binds it as the
// player's output. A newer connection displaces the previous one.
func (s *Server) handlePlaybackSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("[Server] websocket upgrade failed: %v", err)
		return
	}

	out := newWSOutput(conn, s.logger)
	s.player.SetOutput(out)
	s.logger.Printf("[Server] playback client connected from %s", r.RemoteAddr)

	// Mirror engine state onto the socket so the board can show
	// generating/playing indicators.
	sub := s.bus.Subscribe(events.TopicPlaybackState, events.WithSubscriptionName("ws-playback"))
	defer sub.Close()

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case env, ok := <-sub.C():
				if !ok {
					return
				}
				state, ok := env.Payload.(events.PlaybackState)
				if !ok {
					continue
				}
				out.send(wsMessage{Type: "state", ButtonID: state.ButtonID, State: state.State, Error: state.Error})
			case <-ticker.C:
				if err := out.ping(); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		out.handleAck(msg)
	}

	out.close()
	s.player.ClearOutput(out)
	conn.Close()
	s.logger.Printf("[Server] playback client disconnected")
}
