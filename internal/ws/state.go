// Package ws serves the matrix to browser previews: frames, diagnostics and
// a control socket, plus a JSON health endpoint.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	diag "github.com/coreman2200/themeparkwaits/internal/diagnostics"
	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/coreman2200/themeparkwaits/internal/tests"
)

const writeWait = 200 * time.Millisecond

// Controller is what the control socket can ask of the running app.
type Controller interface {
	ApplySettings(values map[string]any) error
	RequestRefresh()
	RunTest(k tests.Kind) error
}

// ControlMessage is one request on /control. Every field is optional.
type ControlMessage struct {
	Settings map[string]any `json:"settings,omitempty"`
	Refresh  bool           `json:"refresh,omitempty"`
	RunTest  string         `json:"runTest,omitempty"`
}

type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	RGB     []byte `json:"rgb"`
}

type topology struct {
	T      string `json:"t"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Serp   bool   `json:"serpentine"`
	Driver string `json:"driver"`
}

// client serializes writes; gorilla allows one writer per connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// State fans frames out to preview clients. It is a led.Driver, so it can sit
// behind the render engine on its own or in a led.Tee with hardware.
type State struct {
	Layout     layout.Layout
	Driver     string
	Controller Controller

	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	rgb         []byte
	frameID     uint64
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool
	closed      bool
}

func NewState(l layout.Layout, driver string, logger zerolog.Logger) *State {
	return &State{
		Layout:      l,
		Driver:      driver,
		logger:      logger.With().Str("component", "ws").Logger(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		rgb:         make([]byte, l.Count()*3),
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
}

// Write keeps a copy of the frame and broadcasts it.
func (s *State) Write(rgb []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("ws: closed")
	}
	s.rgb = append(s.rgb[:0], rgb...)
	s.frameID++
	b, err := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: s.frameID, RGB: s.rgb})
	targets := keys(s.clients)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast(targets, b)
	return nil
}

// Close disconnects every client.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		c.conn.Close()
	}
	for c := range s.diagClients {
		c.conn.Close()
	}
	return nil
}

// Push sends d to every diagnostics client.
func (s *State) Push(d diag.Diagnostic) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	s.mu.RLock()
	targets := keys(s.diagClients)
	s.mu.RUnlock()
	s.broadcast(targets, b)
}

func (s *State) broadcast(targets []*client, b []byte) {
	for _, c := range targets {
		if err := c.send(b); err != nil {
			s.logger.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) FrameID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameID
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.sendTopology(c)

	s.mu.Lock()
	last := frame{T: time.Now().UnixNano(), FrameID: s.frameID, RGB: append([]byte(nil), s.rgb...)}
	s.clients[c] = true
	s.mu.Unlock()
	if b, err := json.Marshal(last); err == nil {
		_ = c.send(b)
	}
	go s.drain(c, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	s.diagClients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.diagClients)
}

// HandleControlWS reads ControlMessages and answers each with a
// ControlReply followed by the current topology.
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ControlMessage
		reply := ControlReply{OK: true}
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = ControlReply{Error: err.Error()}
		} else if err := s.applyControl(msg); err != nil {
			reply = ControlReply{Error: err.Error()}
		}
		if b, err := json.Marshal(reply); err == nil {
			_ = c.send(b)
		}
		s.sendTopology(c)
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"count":    s.Layout.Count(),
		"driver":   s.Driver,
		"clients":  len(s.clients),
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *State) applyControl(msg ControlMessage) error {
	if s.Controller == nil {
		return errors.New("no controller")
	}
	var errs []error
	if len(msg.Settings) > 0 {
		if err := s.Controller.ApplySettings(msg.Settings); err != nil {
			s.Push(diag.FromError(diag.ConfigInvalid, "Settings rejected", err))
			errs = append(errs, err)
		} else {
			s.Push(diag.New(diag.Info, diag.ConfigApplied, "Settings applied").With("keys", len(msg.Settings)))
		}
	}
	if msg.RunTest != "" {
		k, err := tests.ParseKind(msg.RunTest)
		if err == nil {
			err = s.Controller.RunTest(k)
		}
		if err != nil {
			s.Push(diag.New(diag.Warn, diag.TestUnknown, "Unknown test name").With("name", msg.RunTest))
			errs = append(errs, err)
		}
	}
	if msg.Refresh {
		s.Controller.RequestRefresh()
	}
	return errors.Join(errs...)
}

func (s *State) upgrade(w http.ResponseWriter, r *http.Request) (*client, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade")
		return nil, false
	}
	return &client{conn: conn}, true
}

// drain reads until the peer goes away, then forgets it.
func (s *State) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) sendTopology(c *client) {
	s.mu.RLock()
	top := topology{
		T:      "topology",
		Width:  s.Layout.Dim.X,
		Height: s.Layout.Dim.Y,
		Serp:   s.Layout.Order.XFlipEveryRow,
		Driver: s.Driver,
	}
	s.mu.RUnlock()
	b, _ := json.Marshal(top)
	_ = c.send(b)
}

func keys(m map[*client]bool) []*client {
	out := make([]*client, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	return out
}
