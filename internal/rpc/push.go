package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"

	logx "stretchbot/pkg/logx"
)

// broadcaster tracks connected WebSocket servers and pushes bus events to
// them as JSON-RPC notifications.
type broadcaster struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logx.Logger
}

func newBroadcaster(log logx.Logger) *broadcaster {
	return &broadcaster{servers: map[*jrpc2.Server]struct{}{}, log: log}
}

func (b *broadcaster) register(srv *jrpc2.Server) {
	b.mu.Lock()
	b.servers[srv] = struct{}{}
	b.mu.Unlock()
}

func (b *broadcaster) unregister(srv *jrpc2.Server) {
	b.mu.Lock()
	delete(b.servers, srv)
	b.mu.Unlock()
}

func (b *broadcaster) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.servers)
}

func (b *broadcaster) snapshot() []*jrpc2.Server {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*jrpc2.Server, 0, len(b.servers))
	for srv := range b.servers {
		out = append(out, srv)
	}
	return out
}

// broadcast sends method to every client. Failed servers are dropped.
func (b *broadcaster) broadcast(method string, params any) {
	var failed []*jrpc2.Server
	for _, srv := range b.snapshot() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := srv.Notify(ctx, method, params)
		cancel()
		if err != nil {
			b.log.Debug("rpc push failed", logx.String("method", method), logx.Err(err))
			failed = append(failed, srv)
		}
	}
	if len(failed) > 0 {
		b.mu.Lock()
		for _, srv := range failed {
			delete(b.servers, srv)
		}
		b.mu.Unlock()
	}
}

func (b *broadcaster) closeAll() {
	for _, srv := range b.snapshot() {
		srv.Stop()
	}
}
