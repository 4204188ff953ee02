package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"stretchbot/internal/eventbus"
	logx "stretchbot/pkg/logx"
)

// Server serves the engine over JSON-RPC 2.0: request/response over HTTP
// at /rpc and a bidirectional WebSocket at /ws that also receives every
// bus event as a notification named after its topic.
type Server struct {
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	methods handler.Map
	bridge  jhttp.Bridge
	push    *broadcaster
}

func NewServer(cfg Config, eng Engine, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := newMethods(eng)
	return &Server{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		methods: m,
		bridge:  jhttp.NewBridge(m, nil),
		push:    newBroadcaster(log),
	}
}

// Handler returns the HTTP routes, wrapped in auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/rpc", s.bridge)
	mux.HandleFunc("/ws", s.serveWS)
	return requireToken(s.cfg.Token, mux)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", logx.Err(err))
		return
	}
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(&wsChannel{conn: conn, ctx: r.Context()})
	s.push.register(srv)
	s.log.Debug("websocket client connected", logx.String("remote", r.RemoteAddr))

	_ = srv.Wait()
	s.push.unregister(srv)
	s.log.Debug("websocket client disconnected", logx.String("remote", r.RemoteAddr))
}

// Clients is the number of connected WebSocket clients.
func (s *Server) Clients() int { return s.push.count() }

// Forward pushes bus events to WebSocket clients until ctx is done.
func (s *Server) Forward(ctx context.Context) error {
	if s.bus == nil {
		<-ctx.Done()
		return nil
	}
	ch, unsub := s.bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.push.broadcast(ev.Type, ev.Data)
		}
	}
}

// Serve listens on cfg.Addr until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("rpc listen %s: %w", s.cfg.Addr, err)
	}
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.log.Info("rpc listening", logx.String("addr", ln.Addr().String()), logx.Bool("auth", s.cfg.Token != ""))

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("rpc serve: %w", err)
	case <-ctx.Done():
	}

	s.push.closeAll()
	sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		s.log.Warn("rpc shutdown", logx.Err(err))
	}
	<-errCh
	return nil
}

// Close releases the HTTP bridge.
func (s *Server) Close() error {
	s.push.closeAll()
	return s.bridge.Close()
}
