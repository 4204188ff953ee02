package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stretchbot/internal/config"
	"stretchbot/internal/engine"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/notifier"
	"stretchbot/internal/platform"
	"stretchbot/internal/rpc"
	rtsup "stretchbot/internal/runtime/supervisor"
	"stretchbot/internal/storage"
	logx "stretchbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	engine *engine.Engine
	notif  *notifier.Service
	rpc    *rpc.Server

	plat platform.Service
}

type Option func(*App)

// WithPlatform overrides the OS integration used for autostart.
func WithPlatform(p platform.Service) Option {
	return func(a *App) { a.plat = p }
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("info").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	cfgm = config.NewManager(cfgPath, log.With(logx.String("comp", "config")))
	cfgm.Commit(cfg)
	log = log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		plat:    platform.NewService(),
	}
	for _, o := range opts {
		o(a)
	}

	// Storage failures degrade to an in-memory mirror rather than
	// aborting startup.
	sc, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	storeLog := log.With(logx.String("comp", "storage"))
	primary, err := storage.Open(sc, storeLog)
	if err != nil {
		log.Warn("storage open failed; settings will not persist", logx.String("driver", sc.Driver), logx.Err(err))
	} else {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	a.store = storage.NewMirror(context.Background(), primary, storeLog)

	ec, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	a.engine = engine.New(ec, a.store, a.bus, log.With(logx.String("comp", "engine")),
		engine.WithAutostart(a.applyAutostart),
	)

	nc, err := cfg.NotifierConfig()
	if err != nil {
		return nil, err
	}
	sinks := []notifier.Sink{notifier.NewLogSink(log.With(logx.String("comp", "reminders")), nc.LogTicksEvery)}
	if cfg.Telegram.Enabled {
		tg, err := notifier.NewTelegramSink(cfg.TelegramConfig())
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	a.notif = notifier.New(nc, a.bus, log.With(logx.String("comp", "notifier")), sinks...)

	if cfg.RPC.Enabled {
		rc, err := cfg.RPCConfig()
		if err != nil {
			return nil, err
		}
		a.rpc = rpc.NewServer(rc, a.engine, a.bus, log.With(logx.String("comp", "rpc")))
	}
	return a, nil
}

// applyAutostart is the engine's login-item hook. The config section can
// switch OS integration off entirely.
func (a *App) applyAutostart(enabled bool) error {
	cfg := a.cfgm.Get()
	if cfg == nil || !cfg.Autostart.Enabled {
		a.log.Debug("autostart integration disabled; ignoring", logx.Bool("requested", enabled))
		return nil
	}
	return platform.Apply(a.plat, cfg.AppName(), enabled)
}

func (a *App) Engine() *engine.Engine { return a.engine }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if err := a.engine.Init(a.sup.Context()); err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	a.notif.Start(a.sup.Context())

	a.sup.Go("engine.loop", a.engine.Run)
	if a.rpc != nil {
		a.sup.Go("rpc.serve", a.rpc.Serve)
		a.sup.GoRestart("rpc.forward", a.rpc.Forward)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	platform.NotifyReady(a.log)
	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			ch := config.Diff(lastApplied, next)
			lastApplied = next
			if ch.Empty() {
				a.log.Info("config reloaded (no changes)")
				continue
			}
			a.applyConfig(ctx, next, ch)
			fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
			a.log.Info("config reloaded", fields...)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config, ch config.Change) {
	if ch.Has("logging") {
		a.logs.Apply(cfg.LogConfig())
	}
	if ch.Has("engine") {
		if ec, err := cfg.EngineConfig(); err != nil {
			a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
		} else {
			a.engine.Apply(ec)
		}
	}
	if ch.Has("notifier") {
		nc, err := cfg.NotifierConfig()
		if err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		} else {
			prev := a.notif.Enabled()
			a.notif.Apply(nc)
			switch {
			case prev && !nc.Enabled:
				a.log.Info("notifier disabled via config")
				stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				a.notif.Stop(stopCtx)
				cancel()
			case !prev && nc.Enabled:
				a.log.Info("notifier enabled via config")
				a.notif.Start(ctx)
			}
		}
	}
	for _, s := range []string{"storage", "telegram", "rpc"} {
		if ch.Has(s) {
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	platform.NotifyStopping(a.log)

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("engine", time.Second, func(context.Context) error { a.engine.Shutdown(); return nil })
	if a.rpc != nil {
		step("rpc", 2*time.Second, func(context.Context) error { return a.rpc.Close() })
	}
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
