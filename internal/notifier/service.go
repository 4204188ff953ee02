package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"stretchbot/internal/eventbus"
	rtsup "stretchbot/internal/runtime/supervisor"
	logx "stretchbot/pkg/logx"
)

var ErrStopped = errors.New("notifier stopped")

// Service subscribes to the bus and hands every event to its sinks.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	sinks []Sink
	cfg   Config

	unsub    func()
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	delivered atomic.Uint64
	failed    atomic.Uint64
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger, sinks ...Sink) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, bus: bus}
	for _, sk := range sinks {
		if sk != nil {
			s.sinks = append(s.sinks, sk)
		}
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. Queue size changes take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.LogTicksEvery < 0 {
		cfg.LogTicksEvery = 0
	}
	s.cfg = cfg
}

func (s *Service) Stats() Stats {
	return Stats{Delivered: s.delivered.Load(), Failed: s.failed.Load()}
}

// Start subscribes to the bus. It is idempotent and a no-op when disabled.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	if s.unsub != nil || !s.cfg.Enabled || s.bus == nil || len(s.sinks) == 0 {
		return
	}

	ch, unsub := s.bus.Subscribe(s.cfg.QueueSize)
	s.unsub = unsub
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	s.sup.GoRestart("notifier.dispatch", func(c context.Context) error {
		return s.dispatchLoop(c, ch)
	}, rtsup.WithPublishFirstError(true))

	names := make([]string, 0, len(s.sinks))
	for _, sk := range s.sinks {
		names = append(names, sk.Name())
	}
	s.log.Info("notifier started", logx.Any("sinks", names), logx.Int("queue", s.cfg.QueueSize))
}

// dispatchLoop returns nil once the subscription channel is closed and drained.
func (s *Service) dispatchLoop(ctx context.Context, ch <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.deliver(ctx, ev)
		}
	}
}

func (s *Service) deliver(ctx context.Context, ev eventbus.Event) {
	s.mu.Lock()
	timeout := s.cfg.SendTimeout
	sinks := s.sinks
	s.mu.Unlock()

	for _, sk := range sinks {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := sk.Handle(cctx, ev)
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.log.Warn("sink delivery failed", logx.String("sink", sk.Name()), logx.String("event", ev.Type), logx.Err(err))
			continue
		}
		s.delivered.Add(1)
	}
}

// Stop unsubscribes and drains buffered events until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	unsub, sup := s.unsub, s.sup
	if unsub == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		unsub()
		_ = sup.Wait(context.Background())
		s.mu.Lock()
		s.unsub, s.sup, s.stopDone = nil, nil, nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
		s.log.Info("notifier stopped", logx.Int64("delivered", int64(s.delivered.Load())), logx.Int64("failed", int64(s.failed.Load())))
	case <-ctx.Done():
		sup.Cancel()
	}
}
