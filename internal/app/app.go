package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"speechspy/internal/broadcast"
	"speechspy/internal/config"
	"speechspy/internal/eventbus"
	"speechspy/internal/hotkey"
	"speechspy/internal/ipc"
	"speechspy/internal/metrics"
	"speechspy/internal/multicast"
	"speechspy/internal/observability/debughttp"
	rtsup "speechspy/internal/runtime/supervisor"
	"speechspy/internal/settings"
	"speechspy/internal/speech"
	"speechspy/internal/storage"
	logx "speechspy/pkg/logx"
	"speechspy/pkg/systemd"
)

const (
	socketProbeTimeout = 300 * time.Millisecond
	socketRetries      = 2
)

type App struct {
	cfgPath  string
	instance string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log         logx.Logger
	logs        *logx.Service
	logOverride logx.Logger

	bus      eventbus.Bus
	store    storage.Store
	settings *settings.Store
	metrics  *metrics.Collector
	sender   *multicast.Sender
	bc       *broadcast.Broadcaster

	base      speech.Speaker
	hook      *speech.Hook
	uninstall func()

	debug *debughttp.Service

	hkMu  sync.Mutex
	hk    *hotkey.Listener
	hkCfg config.HotkeyConfig

	cron *cron.Cron
	ln   net.Listener
}

// NewApp loads the config file and builds every component. Nothing runs
// until Start.
func NewApp(cfgPath string, opts ...Option) (*App, error) {
	a := &App{cfgPath: cfgPath, instance: uuid.NewString()}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	a.cfgm = cfgm

	if a.logOverride.IsZero() {
		a.logs, a.log = logx.New(mapLogConfig(cfg))
	} else {
		a.log = a.logOverride
	}
	a.log = a.log.With(logx.String("instance", a.instance))
	log := a.log.With(logx.String("comp", "app"))

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	lctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	st, err := settings.Load(lctx, a.store, a.log.With(logx.String("comp", "settings")))
	cancel()
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	a.settings = st
	if seeded := a.settings.Seed(cfg.Broadcast.Settings()); len(seeded) > 0 {
		log.Debug("settings seeded from config", logx.String("keys", strings.Join(seeded, ",")))
	}

	a.metrics = metrics.NewCollector("speechspy")
	sender, err := multicast.Open(multicast.Config{
		Interface: cfg.Sender.Interface,
		Loopback:  cfg.Sender.LoopbackEnabled(),
	}, a.log.With(logx.String("comp", "multicast")), multicast.WithObserver(a.metrics))
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.sender = sender

	a.bus = eventbus.New()
	a.bc = broadcast.New(a.settings, a.sender, a.log.With(logx.String("comp", "broadcast")),
		broadcast.WithBus(a.bus),
		broadcast.WithRecorder(a.metrics),
	)
	a.metrics.SetMode(string(broadcast.InitialState().Mode()))

	if a.base == nil {
		a.base = logSpeaker(a.log.With(logx.String("comp", "host")))
	}
	a.hook = speech.NewHook(a.base)

	dc, err := mapDebugConfig(cfg)
	if err != nil {
		a.closeStore()
		_ = a.sender.Close()
		return nil, err
	}
	a.debug = debughttp.New(dc, debughttp.Sources{
		Gatherer: a.metrics.Registry(),
		Status:   func() any { return a.bc.Status() },
	}, a.log)
	a.hkCfg = cfg.Hotkey

	return a, nil
}

// Hook is the speak entry point a host calls for every utterance.
func (a *App) Hook() *speech.Hook { return a.hook }

func (a *App) Broadcaster() *broadcast.Broadcaster { return a.bc }

func (a *App) Settings() *settings.Store { return a.settings }

// Instance identifies this process in logs and the audit trail.
func (a *App) Instance() string { return a.instance }

// SocketPath is the bound control socket, "" when IPC is disabled or not started.
func (a *App) SocketPath() string {
	if a.ln == nil {
		return ""
	}
	return a.ln.Addr().String()
}

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
	cfg := a.cfgm.Get()
	log := a.log.With(logx.String("comp", "app"))

	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		_, err := mapDebugConfig(cfg)
		return err
	})

	if path := cfg.IPC.SocketPath(); path != "" {
		ln, err := ipc.Acquire(ctx, path, socketProbeTimeout, socketRetries)
		if err != nil {
			a.sup.Cancel()
			return err
		}
		a.ln = ln
		a.sup.Go("ipc.serve", func(c context.Context) error {
			return ipc.Serve(c, ln, ipc.HandlerFunc(a.handle), ipc.WithLogger(a.log.With(logx.String("comp", "ipc"))))
		})
		log.Info("control socket listening", logx.String("path", path))
	} else {
		log.Info("control socket disabled")
	}

	a.uninstall = a.hook.Install(a.bc, a.log.With(logx.String("comp", "speech")))

	auditOn := cfg.Audit.Enabled && a.store != nil
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.record", func(c context.Context) {
		defer unsub()
		a.recordEvents(c, events, auditOn)
	})
	if auditOn {
		if err := a.startAuditPrune(cfg.Audit); err != nil {
			a.sup.Cancel()
			return err
		}
	}

	if err := a.debug.Start(a.sup.Context()); err != nil {
		log.Warn("debug server not started", logx.Err(err))
	}

	a.applyHotkey(a.sup.Context(), cfg.Hotkey)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		systemd.Watchdog(c, log)
	})
	if sent, err := systemd.Ready(); err != nil {
		log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		log.Debug("sd_notify ready sent")
	}

	log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	log := a.log.With(logx.String("comp", "app"))
	log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	// Cancel first so the control socket stops accepting immediately.
	a.sup.Cancel()

	// run a shutdown step with an upper bound so one component can't stall the whole stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
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
				log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("speech.hook", 0, func(context.Context) error {
		if a.uninstall != nil {
			a.uninstall()
		}
		return nil
	})
	step("hotkey", time.Second, func(context.Context) error {
		a.hkMu.Lock()
		hk := a.hk
		a.hk = nil
		a.hkMu.Unlock()
		if hk != nil {
			hk.Stop()
		}
		return nil
	})
	step("audit.prune", 2*time.Second, func(c context.Context) error {
		if a.cron == nil {
			return nil
		}
		select {
		case <-a.cron.Stop().Done():
			return nil
		case <-c.Done():
			return c.Err()
		}
	})
	step("debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })

	// wait for supervised goroutines (ipc, config watch/reload, event recorder)
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	step("multicast", time.Second, func(context.Context) error { return a.sender.Close() })
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })

	log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
