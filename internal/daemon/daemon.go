// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package daemon assembles lumend: it opens the system bus, registers
// every module on the event loop, and serves the control API until the
// run context is cancelled.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tombee/lumen/internal/backlight"
	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/config"
	"github.com/tombee/lumen/internal/control"
	"github.com/tombee/lumen/internal/daytime"
	"github.com/tombee/lumen/internal/display"
	"github.com/tombee/lumen/internal/journal"
	"github.com/tombee/lumen/internal/lid"
	"github.com/tombee/lumen/internal/lifecycle"
	internallog "github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/metrics"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/photond"
	"github.com/tombee/lumen/internal/state"
	"github.com/tombee/lumen/internal/sysbus"
	"github.com/tombee/lumen/internal/upower"
)

// Options contains daemon options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is the configuration file to watch for runtime-tunable
	// changes. Empty disables hot reload.
	ConfigPath string
}

// Daemon is the lumend daemon.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	router    *sysbus.Router
	client    *photond.Client
	store     *state.Store
	loop      *module.Loop
	backlight *backlight.Module
	journal   *journal.Store
	server    *control.Server
	watches   []*sysbus.Watch

	persisted state.Persisted
}

// New wires the daemon together. The system bus, the hardware service
// watches, and the journal (when enabled) must all come up here;
// failing any of them is fatal by design.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := internallog.New(&internallog.Config{
		Level:     cfg.Log.Level,
		Format:    internallog.Format(cfg.Log.Format),
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	})
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Daemon.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	router, err := sysbus.Open(logger)
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	d := &Daemon{
		cfg:    cfg,
		opts:   opts,
		logger: internallog.WithComponent(logger, "daemon"),
		router: router,
		store:  state.NewStore(),
	}

	d.store.SetScreenComp(cfg.Backlight.ScreenContribution)
	d.seedPersisted()

	b := bus.New(logger, os.Getenv("LUMEND_STRICT") == "1")
	if cfg.Metrics.Enabled {
		b.OnPublish(func(t bus.Topic) { metrics.RecordBusMessage(t.String()) })
	}
	d.loop = module.NewLoop(b, logger)

	if err := d.registerModules(router, cfg); err != nil {
		d.closeTransport()
		return nil, err
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler()
	}
	d.server = control.New(control.Params{
		Loop:         d.loop,
		State:        d.store,
		Journal:      d.journal,
		Pause:        d.backlight.PauseReasons,
		Metrics:      metricsHandler,
		CaptureRate:  cfg.Daemon.CaptureRate,
		CaptureBurst: cfg.Daemon.CaptureBurst,
		Version: control.VersionInfo{
			Version:   opts.Version,
			Commit:    opts.Commit,
			BuildDate: opts.BuildDate,
		},
		Logger: logger,
	})

	return d, nil
}

// registerModules opens the hardware watches and adds every module to
// the loop. Registration order is start order; the calibration module
// goes first so its warm-up behavior observes every producer
// announcement, and metrics go last so gauges see post-transition
// state.
func (d *Daemon) registerModules(router *sysbus.Router, cfg *config.Config) error {
	client := photond.New(router, d.logger)
	d.client = client

	sensorWatch, err := client.WatchSensorChanged()
	if err != nil {
		return fmt.Errorf("watch sensor changes: %w", err)
	}
	d.watches = append(d.watches, sensorWatch)

	backlightWatch, err := client.WatchBacklightChanged()
	if err != nil {
		return fmt.Errorf("watch backlight changes: %w", err)
	}
	d.watches = append(d.watches, backlightWatch)

	powerWatch, err := upower.Watch(router)
	if err != nil {
		return fmt.Errorf("watch power source: %w", err)
	}
	d.watches = append(d.watches, powerWatch)

	lidWatch, err := lid.Watch(router)
	if err != nil {
		return fmt.Errorf("watch lid state: %w", err)
	}
	d.watches = append(d.watches, lidWatch)

	d.backlight = backlight.New(backlight.Params{
		Actuator: client,
		Store:    d.store,
		Config:   cfg,
		Signals: []module.Source{
			sensorWatch.Source(),
			backlightWatch.Source(),
		},
	})

	mods := []module.Module{
		d.backlight,
		upower.New(upower.Params{
			Reader: upower.NewReader(router),
			Store:  d.store,
			Signal: powerWatch.Source(),
		}),
		lid.New(lid.Params{
			Reader: lid.NewReader(router),
			Store:  d.store,
			Signal: lidWatch.Source(),
		}),
		daytime.New(cfg, d.store),
		display.New(d.store),
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(context.Background(), cfg.JournalPath())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		d.journal = store
		mods = append(mods, journal.New(journal.Params{
			Store:     store,
			State:     d.store,
			Retention: time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour,
		}))
	}

	if cfg.Metrics.Enabled {
		mods = append(mods, metrics.New(metrics.Params{
			State: d.store,
			Pause: func() []string { return d.backlight.PauseReasons().Names() },
		}))
	}

	for _, m := range mods {
		if err := d.loop.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// seedPersisted loads the previous run's snapshot so the first status
// report and the journal stay continuous across restarts.
func (d *Daemon) seedPersisted() {
	p, err := state.LoadFile(d.cfg.Daemon.StateFile())
	if err != nil {
		d.logger.Warn("state snapshot unreadable", internallog.Error(err))
		return
	}
	if p.SavedAt.IsZero() {
		return
	}
	d.persisted = p
	d.store.SetBacklight(p.Backlight)
	d.store.SetAmbient(p.Ambient)
	d.logger.Info("restored state snapshot",
		internallog.Float("backlight", p.Backlight),
		internallog.String("saved_at", p.SavedAt.Format(time.RFC3339)))
}

// Run blocks until ctx is cancelled or a subsystem fails, then tears
// the daemon down in reverse of bring-up order.
func (d *Daemon) Run(ctx context.Context) error {
	var pidFile *lifecycle.PIDFile
	if d.cfg.Daemon.PIDFile != "" {
		pidFile = lifecycle.NewPIDFile(d.cfg.Daemon.PIDFile)
		if err := pidFile.Acquire(os.Getpid()); err != nil {
			d.closeTransport()
			return fmt.Errorf("acquire pid file: %w", err)
		}
		defer pidFile.Release() //nolint:errcheck // best-effort cleanup
	}

	ln, err := control.Listen(d.cfg.Daemon.SocketPath)
	if err != nil {
		d.closeTransport()
		return fmt.Errorf("bind control socket: %w", err)
	}

	if d.opts.ConfigPath != "" {
		watcher, werr := config.NewWatcher(d.opts.ConfigPath, d.cfg, d.logger, d.applyConfigChange)
		if werr != nil {
			d.logger.Warn("config hot reload disabled", internallog.Error(werr))
		} else {
			defer watcher.Close() //nolint:errcheck // watcher owns no durable state
		}
	}

	d.seedLevel(ctx)

	if d.cfg.Daemon.RestoreState && !d.persisted.SavedAt.IsZero() {
		d.restoreBacklight()
	}

	d.logger.Info("lumend started",
		internallog.String("version", d.opts.Version),
		internallog.String("socket", d.cfg.Daemon.SocketPath))

	err = d.serve(ctx, ln)

	d.snapshot()
	if d.journal != nil {
		if cerr := d.journal.Close(); cerr != nil {
			d.logger.Warn("journal close failed", internallog.Error(cerr))
		}
	}
	d.closeTransport()
	if rerr := os.Remove(d.cfg.Daemon.SocketPath); rerr != nil && !os.IsNotExist(rerr) {
		d.logger.Warn("socket cleanup failed", internallog.Error(rerr))
	}
	d.logger.Info("lumend stopped")
	return err
}

// serve runs the event loop and the control server until either fails
// or ctx is cancelled.
func (d *Daemon) serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.loop.Run(gctx)
	})
	g.Go(func() error {
		return d.server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), d.cfg.Daemon.ShutdownTimeout)
		defer cancel()
		return d.server.Shutdown(sctx)
	})

	return g.Wait()
}

// seedLevel reads the live backlight level so the first status report
// matches the hardware rather than the previous run. Best effort: the
// daemon works without it.
func (d *Daemon) seedLevel(ctx context.Context) {
	level, err := d.client.Level(ctx, d.cfg.Backlight.Selector)
	if err != nil {
		d.logger.Debug("initial backlight level unavailable", internallog.Error(err))
		return
	}
	d.store.SetBacklight(level)
}

// restoreBacklight reapplies the persisted level through the regular
// request path, so a restart does not leave the screen wherever the
// previous shutdown happened to catch it. The request is queued before
// the loop starts and handled once the calibration module is active.
func (d *Daemon) restoreBacklight() {
	d.loop.Inject(d.loop.Bus().NewRequest(bus.TopicBacklightRequest, bus.BacklightRequest{
		Level:     d.persisted.Backlight,
		Smooth:    d.cfg.Backlight.Smoothing.Enabled,
		Step:      d.cfg.Backlight.Smoothing.Step,
		StepDelay: d.cfg.Backlight.Smoothing.Delay,
	}))
}

// applyConfigChange translates a reloaded configuration into stamped
// requests, so live edits race with lumenctl under the same freshness
// rules. Non-tunable changes are reported and need a restart.
func (d *Daemon) applyConfigChange(old, new *config.Config) {
	diff := config.Compare(old, new)
	if diff.Empty() {
		d.logger.Info("config reloaded, no tunable changes")
		return
	}
	injectDiff(d.loop, diff, d.logger)
}

// snapshot persists the state the next run seeds from.
func (d *Daemon) snapshot() {
	p := state.Persisted{
		Backlight: d.store.Backlight(),
		Ambient:   d.store.Ambient(),
		SavedAt:   time.Now(),
	}
	if err := state.SaveFile(d.cfg.Daemon.StateFile(), p); err != nil {
		d.logger.Warn("state snapshot failed", internallog.Error(err))
	}
}

// closeTransport shuts the signal watches and the bus connection.
func (d *Daemon) closeTransport() {
	for _, w := range d.watches {
		if err := w.Close(); err != nil {
			d.logger.Debug("watch close failed", internallog.Error(err))
		}
	}
	d.watches = nil
	if err := d.router.Close(); err != nil {
		d.logger.Warn("system bus close failed", internallog.Error(err))
	}
}

// injectDiff queues one stamped request per changed tunable.
func injectDiff(loop *module.Loop, diff config.Diff, logger *slog.Logger) {
	b := loop.Bus()
	for _, t := range diff.Timeouts {
		logger.Info("config reload: capture interval changed",
			internallog.String("source", t.Source.String()),
			internallog.String("bucket", t.Bucket.String()),
			internallog.Duration("timeout_ms", t.Timeout.Milliseconds()))
		loop.Inject(b.NewRequest(bus.TopicTimeoutRequest, bus.TimeoutRequest{
			Source:  t.Source,
			Bucket:  t.Bucket,
			Timeout: t.Timeout,
		}))
	}
	for _, c := range diff.Curves {
		logger.Info("config reload: calibration curve changed",
			internallog.String("source", c.Source.String()),
			internallog.Int("points", len(c.Points)))
		loop.Inject(b.NewRequest(bus.TopicCurveRequest, bus.CurveRequest{
			Source: c.Source,
			Points: c.Points,
		}))
	}
	if diff.Autocalib != nil {
		logger.Info("config reload: autocalibration toggled",
			internallog.Bool("disabled", *diff.Autocalib))
		loop.Inject(b.NewRequest(bus.TopicAutocalibRequest, bus.AutocalibRequest{
			Disabled: *diff.Autocalib,
		}))
	}
}
