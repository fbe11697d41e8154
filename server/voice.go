package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/runner"
)

// VoiceOptions configures the realtime voice surface.
type VoiceOptions struct {
	// PingInterval between websocket pings. Defaults to 20s.
	PingInterval time.Duration
	// WriteTimeout bounds every frame write. Defaults to 5s.
	WriteTimeout time.Duration
	// MaxMessageBytes bounds inbound frames. Defaults to 8 MiB, enough for
	// an inline image.
	MaxMessageBytes int64
	// OutboundBuffer is the number of frames queued per connection.
	OutboundBuffer int
	// CheckOrigin decides whether an upgrade is accepted. Defaults to
	// accepting every origin.
	CheckOrigin func(r *http.Request) bool
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// VoiceHandler serves the realtime channel. Every websocket connection owns
// one session for its lifetime.
type VoiceHandler struct {
	runner   *runner.Runner
	opts     VoiceOptions
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu    sync.Mutex
	conns map[*voiceConn]struct{}
}

// NewVoiceHandler creates the voice surface on r.
func NewVoiceHandler(r *runner.Runner, optFns ...func(o *VoiceOptions)) *VoiceHandler {
	opts := VoiceOptions{
		PingInterval:    20 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxMessageBytes: 8 << 20,
		OutboundBuffer:  256,
		CheckOrigin:     func(*http.Request) bool { return true },
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &VoiceHandler{
		runner:   r,
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		logger:   logging.OrNoOp(opts.Logger),
		conns:    make(map[*voiceConn]struct{}),
	}
}

// Close disconnects every client. Hijacked websocket connections are not
// tracked by http.Server.Shutdown.
func (h *VoiceHandler) Close() {
	h.mu.Lock()
	conns := make([]*voiceConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.cancel()
		_ = c.conn.Close()
	}
}

func (h *VoiceHandler) track(c *voiceConn, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if active {
		h.conns[c] = struct{}{}
	} else {
		delete(h.conns, c)
	}
}

// Mux returns the routes of the voice surface.
func (h *VoiceHandler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", h)
	mux.HandleFunc("GET /health", healthHandler(h.runner))
	return mux
}

// ServeHTTP upgrades the connection and serves it until the client leaves.
func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("server.voice.upgrade.failed", "error", err.Error())
		return
	}
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &voiceConn{
		handler: h,
		conn:    conn,
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan ServerFrame, h.opts.OutboundBuffer),
	}
	h.track(c, true)
	defer h.track(c, false)
	c.serve()
}

type voiceConn struct {
	handler *VoiceHandler
	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	out     chan ServerFrame
	sess    *runner.Session
}

func (c *voiceConn) serve() {
	h := c.handler
	sess, err := h.runner.Open("", engine.SinkFunc(c.emit))
	if err != nil {
		_ = c.conn.WriteJSON(ServerFrame{Type: FrameError, Error: err.Error()})
		_ = c.conn.Close()
		return
	}
	c.sess = sess
	h.logger.Info("server.voice.connect", "session_id", sess.ID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.write(); err != nil {
			h.logger.Debug("server.voice.write.stopped", "session_id", sess.ID, "error", err.Error())
		}
		c.cancel()
		_ = c.conn.Close()
	}()

	c.read()

	c.cancel()
	_ = h.runner.Close(sess.ID)
	close(c.out)
	wg.Wait()
	h.logger.Info("server.voice.disconnect", "session_id", sess.ID)
}

// emit forwards engine events to the client.
func (c *voiceConn) emit(ev engine.Event) {
	f := ServerFrame{SessionID: ev.SessionID, Run: ev.Run}
	switch ev.Type {
	case engine.EventDelta:
		f.Type, f.Text = FrameDelta, ev.Text
	case engine.EventDone:
		f.Type, f.Text = FrameDone, ev.Text
		f.ConversationID = c.sess.Orchestrator.ConversationID()
	case engine.EventError:
		f.Type, f.Error = FrameError, "generation failed"
		if ev.Err != nil {
			f.Error = ev.Err.Error()
		}
	default:
		return
	}
	c.send(f)
}

func (c *voiceConn) send(f ServerFrame) {
	select {
	case c.out <- f:
	case <-c.ctx.Done():
	}
}

func (c *voiceConn) read() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.send(ServerFrame{Type: FrameError, Error: "invalid frame"})
			continue
		}
		c.dispatch(frame)
	}
}

func (c *voiceConn) dispatch(frame ClientFrame) {
	orch := c.sess.Orchestrator
	switch frame.Type {
	case FrameConfigure:
		// Acknowledged first so the frame precedes the greeting stream.
		c.send(ServerFrame{Type: FrameConfigured, SessionID: c.sess.ID, ConversationID: frame.ConversationID})
		if err := orch.Configure(c.ctx, frame.UserID, frame.ConversationID); err != nil && !errors.Is(err, context.Canceled) {
			c.send(ServerFrame{Type: FrameError, Error: err.Error()})
		}
	case FrameCameraFrame:
		if c.sess.Frames == nil {
			c.send(ServerFrame{Type: FrameUnsupported, Text: frame.Type})
			return
		}
		c.sess.Frames.Offer(frame.Frame)
	default:
		in, err := frame.Input()
		if err != nil {
			c.send(ServerFrame{Type: FrameUnsupported, Text: frame.Type})
			return
		}
		if err := orch.HandleInput(c.ctx, in); err != nil {
			c.handler.logger.Warn("server.voice.input.rejected", "session_id", c.sess.ID, "kind", in.Kind(), "error", err.Error())
			c.send(ServerFrame{Type: FrameError, Error: err.Error()})
		}
	}
}

// write drains the outbound queue and keeps the connection alive with
// pings. It returns when the queue is closed or a write fails.
func (c *voiceConn) write() error {
	ping := time.NewTicker(c.handler.opts.PingInterval)
	defer ping.Stop()
	timeout := c.handler.opts.WriteTimeout

	for {
		select {
		case f, ok := <-c.out:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(timeout))
				return nil
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteJSON(f); err != nil {
				return err
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(timeout)); err != nil {
				return err
			}
		}
	}
}
