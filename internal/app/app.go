// Package app assembles the services: config, logging, storage, the quota
// ledger, the device driver, the dispatcher, the scheduler, the notifier and
// the HTTP server. It owns startup order, config hot-reload fan-out, and
// graceful shutdown.
package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"smsblast/internal/config"
	"smsblast/internal/contacts"
	"smsblast/internal/device"
	"smsblast/internal/dispatch"
	"smsblast/internal/eventstream"
	"smsblast/internal/notify"
	"smsblast/internal/quota"
	"smsblast/internal/runtime/supervisor"
	"smsblast/internal/schedule"
	"smsblast/internal/server"
	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

type App struct {
	mgr *config.Manager
	sup *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    storage.Store
	contacts *contacts.Store
	adb      *device.ADB
	ledger   *quota.Ledger
	stream   *eventstream.Stream
	disp     *dispatch.Service
	notif    *notify.Service
	sched    *schedule.Service
	srv      *server.Service
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	busyTmo, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTmo,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	book := contacts.NewStore(cfg.Contacts.Path, log.With(logx.String("comp", "contacts")))
	adb := device.NewADB(cfg.Device, log.With(logx.String("comp", "device")))
	ledger := quota.NewLedger(store, log.With(logx.String("comp", "quota")))
	stream := eventstream.New()

	disp := dispatch.New(adb, ledger, stream, store, log.With(logx.String("comp", "dispatch")))
	notif := notify.New(cfg.Notifier, log.With(logx.String("comp", "notify")))
	disp.SetFinishHook(notif.RunFinished)

	sched := schedule.New(mgr, book, disp, log.With(logx.String("comp", "schedule")))

	srv := server.New(cfg.Server, &server.Handlers{
		Manager:  mgr,
		Contacts: book,
		Dispatch: disp,
		Ledger:   ledger,
		Archive:  store,
		Device:   adb,
		Stream:   stream,
		Log:      log.With(logx.String("comp", "http")),
	}, log.With(logx.String("comp", "http")))

	return &App{
		mgr:      mgr,
		log:      log,
		logs:     logSvc,
		store:    store,
		contacts: book,
		adb:      adb,
		ledger:   ledger,
		stream:   stream,
		disp:     disp,
		notif:    notif,
		sched:    sched,
		srv:      srv,
	}, nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err reports the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if err := a.srv.Start(a.sup.Context()); err != nil {
		return err
	}
	a.sched.Apply(a.mgr.Get().Schedule)

	// Config hot-reload fan-out. The manager has already validated and
	// committed; here we only push the new settings into each service.
	sub := a.mgr.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.mgr.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(c, cfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.mgr.Watch(c)
	})

	// Best effort; a no-op outside systemd.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	a.log.Info("started", logx.String("addr", a.srv.Addr()))
	return nil
}

// apply pushes a reloaded config into the live services. Storage is the one
// section that needs a restart; everything else swaps in place.
func (a *App) apply(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.adb.Apply(cfg.Device)
	a.contacts.SetPath(cfg.Contacts.Path)
	a.notif.Apply(cfg.Notifier)
	a.sched.Apply(cfg.Schedule)

	if err := a.srv.Apply(ctx, cfg.Server); err != nil {
		a.log.Error("http server restart failed", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	a.sup.Cancel()

	// Stop taking requests, then stop the scheduler, then let the active run
	// wind down before the archive closes underneath it.
	a.srv.Stop(ctx)
	a.sched.Stop(ctx)

	if a.disp.Stop() {
		a.log.Info("waiting for active run to stop")
	}
	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.disp.Drain(drainCtx); err != nil {
		a.log.Warn("active run did not stop in time", logx.Err(err))
	}
	cancel()

	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("background tasks did not stop in time", logx.Err(err))
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}
