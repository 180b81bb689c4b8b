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

// Package backlight implements automatic backlight calibration: it
// periodically captures ambient brightness, maps it through a per-power
// -source curve, and writes the resulting level to the hardware
// service. Calibration pauses while any of several independent reasons
// holds (dimmed display, missing sensor, disabled autocalibration,
// closed lid) and resumes when the last one clears.
package backlight

import (
	"context"
	"log/slog"
	"time"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/calib"
	"github.com/tombee/lumen/internal/config"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/metrics"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/photond"
	"github.com/tombee/lumen/internal/state"
	"github.com/tombee/lumen/internal/timer"
)

// Actuator is the hardware service surface the module needs. Satisfied
// by *photond.Client.
type Actuator interface {
	IsAvailable(ctx context.Context, device string) (string, bool, error)
	Capture(ctx context.Context, device string, frames int, settings string) (string, []float64, error)
	SetAll(ctx context.Context, pct float64, smooth photond.Smooth, selector string) (bool, error)
}

// Readiness bits collected before the first calibration cycle: the
// module must know the power source, lid state and daytime bucket
// before it can pick an interval and decide whether to pause.
const (
	readyPower uint8 = 1 << iota
	readyLid
	readyDaytime

	readyAll = readyPower | readyLid | readyDaytime
)

// Params carries the module's dependencies.
type Params struct {
	// Actuator talks to the hardware service.
	Actuator Actuator

	// Store is the shared daemon state.
	Store *state.Store

	// Config is the loaded daemon configuration. The module copies the
	// knobs it needs; later changes arrive as requests, not by
	// mutating this.
	Config *config.Config

	// Signals are optional hardware notification sources (sensor
	// hotplug, external backlight changes).
	Signals []module.Source
}

// Module is the backlight calibration module.
type Module struct {
	rt     *module.Runtime
	logger *slog.Logger

	actuator Actuator
	store    *state.Store
	signals  []module.Source

	device   string
	captures int
	settings string
	shutter  float64

	selector    string
	smoothing   config.SmoothingConfig
	pauseOnLid  bool
	noAutoCalib bool
	curvePoints [bus.PowerSourceCount][]float64

	timer    *timer.Handle
	timerSrc module.Source

	curves   [bus.PowerSourceCount]*calib.Curve
	timeouts [bus.PowerSourceCount][bus.BucketCount]time.Duration

	ready  uint8
	paused pauseState

	ctx context.Context
}

// New builds the module from its dependencies.
func New(p Params) *Module {
	m := &Module{
		actuator: p.Actuator,
		store:    p.Store,
		signals:  p.Signals,

		device:   p.Config.Sensor.Device,
		captures: p.Config.Sensor.Captures,
		settings: p.Config.Sensor.Settings,
		shutter:  p.Config.Sensor.ShutterThreshold,

		selector:    p.Config.Backlight.Selector,
		smoothing:   p.Config.Backlight.Smoothing,
		pauseOnLid:  p.Config.Backlight.PauseOnLidClosed,
		noAutoCalib: p.Config.Backlight.NoAutoCalib,

		timer: timer.New("backlight-capture"),
		ctx:   context.Background(),
	}
	m.curvePoints[bus.PowerAC] = p.Config.Backlight.Curves.AC
	m.curvePoints[bus.PowerBattery] = p.Config.Backlight.Curves.Battery
	for s := 0; s < bus.PowerSourceCount; s++ {
		for b := 0; b < bus.BucketCount; b++ {
			m.timeouts[s][b] = p.Config.Backlight.Timeouts.For(bus.PowerSource(s), bus.DaytimeBucket(b))
		}
	}
	m.timerSrc = module.TimerSource(m.timer)
	return m
}

// Name implements module.Module.
func (m *Module) Name() string { return "backlight" }

// Init fits the calibration curves, subscribes to the topics the module
// reacts to, and installs the warm-up behavior that waits for the
// initial power, lid and daytime announcements.
func (m *Module) Init(rt *module.Runtime) error {
	m.rt = rt
	m.logger = rt.Logger()

	for s := 0; s < bus.PowerSourceCount; s++ {
		curve, err := calib.NewCurve(m.curvePoints[s])
		if err != nil {
			return err
		}
		m.curves[s] = curve
		m.store.SetCurveCoeffs(bus.PowerSource(s), curve.Coefficients())
	}

	for _, t := range []bus.Topic{
		bus.TopicPowerChanged,
		bus.TopicDisplayChanged,
		bus.TopicLidChanged,
		bus.TopicDaytimeChanged,
		bus.TopicEventWindowChanged,
		bus.TopicTimeoutRequest,
		bus.TopicCaptureRequest,
		bus.TopicCurveRequest,
		bus.TopicAutocalibRequest,
		bus.TopicBacklightRequest,
	} {
		rt.Subscribe(t)
	}

	rt.AddSource(m.timerSrc)
	for _, s := range m.signals {
		rt.AddSource(s)
	}

	rt.SetReceive(m.receive)
	return rt.Become(m.receiveWaiting)
}

// Start implements module.Module. Activation is event driven: the
// module leaves warm-up once every producer has announced its initial
// state, which may happen before or after Start runs.
func (m *Module) Start() error {
	if m.ready != readyAll {
		m.logger.Debug("waiting for initial power, lid and daytime state")
	}
	// Activation during an earlier module's Start records the paused
	// lifecycle before the loop marks this module active; reassert it.
	if m.paused.get() != 0 {
		m.rt.SetPaused(true)
	}
	return nil
}

// Destroy implements module.Module.
func (m *Module) Destroy() {
	m.timer.Disarm()
}

// PauseReasons returns the active pause reasons. Safe for concurrent
// use; the control server reports it.
func (m *Module) PauseReasons() PauseSet {
	return m.paused.get()
}

// receiveWaiting is the warm-up behavior: it only counts the initial
// announcements and activates once all three have arrived. Requests
// received before activation are dropped.
func (m *Module) receiveWaiting(msg bus.Message) {
	switch msg.Topic {
	case bus.TopicPowerChanged:
		m.ready |= readyPower
	case bus.TopicLidChanged:
		m.ready |= readyLid
	case bus.TopicDaytimeChanged:
		m.ready |= readyDaytime
	default:
		return
	}
	if m.ready == readyAll {
		m.activate()
	}
}

// activate leaves warm-up, probes the sensor, evaluates the initial
// pause reasons, and either starts the capture cycle or enters the
// paused behavior directly.
func (m *Module) activate() {
	if err := m.rt.Unbecome(); err != nil {
		m.logger.Error("cannot leave warm-up", log.Error(err))
		return
	}

	available := m.probeSensor()

	reasons := PauseSet(0).
		With(PauseSensor, !available).
		With(PauseAutocalib, m.noAutoCalib).
		With(PauseDimmed, m.store.DisplayDimmed()).
		With(PauseLid, m.pauseOnLid && m.store.LidClosed())

	m.logger.Info("backlight calibration ready",
		log.String("power", m.store.PowerSource().String()),
		log.String("bucket", m.store.EffectiveBucket().String()),
		log.Bool("sensor_available", available))

	m.store.SetEffectiveTimeout(m.effectiveTimeout())

	// Autocalibration disabled from the start: leave the screen at full
	// brightness rather than wherever the previous session put it.
	if m.noAutoCalib {
		m.actuate(1, false, 0, 0)
	}

	if reasons != 0 {
		m.paused.set(reasons)
		m.enterPaused()
		return
	}
	// First calibration runs through the regular timer path.
	m.armImmediate()
}

// receive is the active behavior.
func (m *Module) receive(msg bus.Message) {
	switch msg.Topic {
	case bus.TopicTimerFired:
		m.capture(true, false)

	case bus.TopicSignal:
		m.handleSignal(msg.Data.(bus.SignalEvent))

	case bus.TopicPowerChanged:
		// A new power source selects another curve and interval table
		// row; recalibrate immediately rather than waiting out the old
		// interval.
		m.armImmediate()

	case bus.TopicDaytimeChanged, bus.TopicEventWindowChanged:
		// The effective bucket changed; keep elapsed time and finish
		// the period under the new interval.
		m.rearmFrom(m.effectiveTimeout())

	case bus.TopicDisplayChanged:
		m.setReason(PauseDimmed, msg.Data.(bus.DisplayChange).Dimmed)

	case bus.TopicLidChanged:
		if m.pauseOnLid {
			m.setReason(PauseLid, msg.Data.(bus.LidChange).Closed)
		}

	case bus.TopicTimeoutRequest:
		m.applyTimeout(msg, true)

	case bus.TopicCaptureRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		req := msg.Data.(bus.CaptureRequest)
		m.capture(req.ResetTimer, req.CaptureOnly)

	case bus.TopicCurveRequest:
		m.applyCurve(msg)

	case bus.TopicAutocalibRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		m.applyAutocalib(msg.Data.(bus.AutocalibRequest).Disabled)

	case bus.TopicBacklightRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		m.applyManual(msg.Data.(bus.BacklightRequest))
	}
}

// receivePaused replaces receive while any pause reason holds. State
// keeps tracking so the eventual resume starts from current conditions,
// but nothing touches the capture timer and actuation is gated.
func (m *Module) receivePaused(msg bus.Message) {
	switch msg.Topic {
	case bus.TopicTimerFired:
		// Residual wakeup from a pump that was already draining when
		// the timer source was removed.
		m.logger.Debug("ignoring capture wakeup while paused",
			log.String("reasons", m.paused.get().String()))

	case bus.TopicSignal:
		m.handleSignal(msg.Data.(bus.SignalEvent))

	case bus.TopicPowerChanged, bus.TopicDaytimeChanged, bus.TopicEventWindowChanged:
		// Tracked via the store; the interval is re-evaluated on resume.

	case bus.TopicDisplayChanged:
		m.setReason(PauseDimmed, msg.Data.(bus.DisplayChange).Dimmed)

	case bus.TopicLidChanged:
		if m.pauseOnLid {
			m.setReason(PauseLid, msg.Data.(bus.LidChange).Closed)
		}

	case bus.TopicTimeoutRequest:
		m.applyTimeout(msg, false)

	case bus.TopicCaptureRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		if m.store.DisplayDimmed() || !m.store.SensorAvailable() {
			m.logger.Debug("dropping capture request while paused",
				log.String("reasons", m.paused.get().String()))
			return
		}
		// Serve the explicit capture, honoring the timer reset. The
		// armed handle has no source while paused; a tick it leaves
		// pending is replaced when the resume rearms.
		req := msg.Data.(bus.CaptureRequest)
		m.capture(req.ResetTimer, req.CaptureOnly)

	case bus.TopicCurveRequest:
		m.applyCurve(msg)

	case bus.TopicAutocalibRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		m.applyAutocalib(msg.Data.(bus.AutocalibRequest).Disabled)

	case bus.TopicBacklightRequest:
		if !m.rt.Fresh(msg) {
			m.dropStale(msg)
			return
		}
		if m.store.DisplayDimmed() {
			m.logger.Debug("dropping backlight request while dimmed")
			return
		}
		m.applyManual(msg.Data.(bus.BacklightRequest))
	}
}

// capture runs one calibration cycle: read the sensor, publish the
// ambient level, and unless captureOnly map it through the curve and
// actuate. When reset is set the periodic timer restarts with the full
// effective interval afterwards, whether or not the capture succeeded.
func (m *Module) capture(reset, captureOnly bool) {
	defer func() {
		if reset {
			m.arm(m.effectiveTimeout())
		}
	}()

	sensor, readings, err := m.actuator.Capture(m.ctx, m.device, m.captures, m.settings)
	if err != nil {
		m.logger.Error("ambient capture failed", log.Error(err))
		metrics.RecordCapture("error")
		return
	}
	if len(readings) == 0 {
		m.logger.Warn("ambient capture returned no readings",
			log.String("sensor", sensor))
		metrics.RecordCapture("error")
		return
	}

	raw := calib.Mean(readings)
	ambient := calib.Clamp(raw-m.store.ScreenComp(), 0, 1)
	old := m.store.Ambient()
	m.store.SetAmbient(ambient)
	m.rt.Publish(bus.TopicAmbientChanged, bus.AmbientChange{Old: old, New: ambient})

	if captureOnly {
		metrics.RecordCapture("ok")
		return
	}

	if ambient < m.shutter {
		m.logger.Info("sensor covered, leaving backlight untouched",
			log.Float("ambient", ambient),
			log.Float("threshold", m.shutter))
		metrics.RecordCapture("covered")
		return
	}
	metrics.RecordCapture("ok")

	level := m.curves[m.store.PowerSource()].Map(ambient)
	m.logger.Debug("calibration cycle",
		log.String("sensor", sensor),
		log.Float("raw", raw),
		log.Float("ambient", ambient),
		log.Float("level", level))
	m.actuate(level, m.smoothing.Enabled, m.smoothing.Step, m.smoothing.Delay)
}

// actuate writes a backlight level and records the change.
func (m *Module) actuate(level float64, smooth bool, step float64, delay time.Duration) {
	s := photond.Smooth{
		Enabled: smooth,
		Step:    step,
		Delay:   uint32(delay / time.Millisecond),
	}
	ok, err := m.actuator.SetAll(m.ctx, level, s, m.selector)
	if err != nil {
		m.logger.Error("backlight set failed", log.Error(err))
		return
	}
	if !ok {
		m.logger.Warn("backlight change not accepted",
			log.Float("level", level))
		return
	}

	metrics.RecordActuation()
	old := m.store.Backlight()
	m.store.SetBacklight(level)
	m.rt.Publish(bus.TopicBacklightChanged, bus.BacklightChange{
		Old:       old,
		New:       level,
		Smooth:    smooth,
		Step:      step,
		StepDelay: delay,
	})
}

// applyAutocalib serves an autocalibration toggle. Disabling restores
// full brightness in a single step before the pause takes hold, so a
// screen calibrated for a dark room is never left dim with nothing
// driving it. Re-disabling while already disabled writes nothing.
func (m *Module) applyAutocalib(disabled bool) {
	if disabled && !m.paused.get().Has(PauseAutocalib) {
		m.actuate(1, false, 0, 0)
	}
	m.setReason(PauseAutocalib, disabled)
}

// applyManual serves an explicit backlight request, falling back to the
// configured smoothing parameters where the request leaves them unset.
func (m *Module) applyManual(req bus.BacklightRequest) {
	level := calib.Clamp(req.Level, 0, 1)
	step := req.Step
	if step <= 0 {
		step = m.smoothing.Step
	}
	delay := req.StepDelay
	if delay <= 0 {
		delay = m.smoothing.Delay
	}
	m.actuate(level, req.Smooth, step, delay)
}

// applyTimeout updates one interval table entry. The timer is rearmed,
// preserving elapsed time, only when the changed entry is the one
// currently driving the capture cycle.
func (m *Module) applyTimeout(msg bus.Message, rearm bool) {
	if !m.rt.Fresh(msg) {
		m.dropStale(msg)
		return
	}
	req := msg.Data.(bus.TimeoutRequest)
	if !bus.ValidPowerSource(req.Source) || !bus.ValidBucket(req.Bucket) {
		m.logger.Warn("rejecting interval update for unknown table entry")
		return
	}

	timeout := req.Timeout
	if timeout < 0 {
		timeout = 0
	}
	old := m.timeouts[req.Source][req.Bucket]
	if old == timeout {
		return
	}
	m.timeouts[req.Source][req.Bucket] = timeout
	m.logger.Info("capture interval updated",
		log.String("power", req.Source.String()),
		log.String("bucket", req.Bucket.String()),
		log.Duration("old", old.Milliseconds()),
		log.Duration("new", timeout.Milliseconds()))

	if req.Source == m.store.PowerSource() && req.Bucket == m.store.EffectiveBucket() {
		m.store.SetEffectiveTimeout(timeout)
		if rearm {
			m.rearmFrom(timeout)
		}
	}
}

// applyCurve replaces or refits one calibration curve.
func (m *Module) applyCurve(msg bus.Message) {
	if !m.rt.Fresh(msg) {
		m.dropStale(msg)
		return
	}
	req := msg.Data.(bus.CurveRequest)
	if !bus.ValidPowerSource(req.Source) {
		m.logger.Warn("rejecting curve update for unknown power source")
		return
	}
	if err := m.curves[req.Source].SetPoints(req.Points); err != nil {
		m.logger.Warn("rejecting calibration points", log.Error(err))
		return
	}
	m.store.SetCurveCoeffs(req.Source, m.curves[req.Source].Coefficients())
	m.logger.Info("calibration curve updated",
		log.String("power", req.Source.String()),
		log.Int("points", len(m.curves[req.Source].Points())))
}

// handleSignal reacts to hardware service notifications delivered by
// the module's signal sources.
func (m *Module) handleSignal(ev bus.SignalEvent) {
	switch ev.Name {
	case photond.SensorInterface + ".Changed":
		available := m.probeSensor()
		m.setReason(PauseSensor, !available)

	case photond.BacklightInterface + ".Changed":
		m.handleExternalBacklight(ev)

	default:
		m.logger.Debug("ignoring unexpected signal", log.String("signal", ev.Name))
	}
}

// handleExternalBacklight tracks level changes made behind the daemon's
// back, e.g. via hardware keys.
func (m *Module) handleExternalBacklight(ev bus.SignalEvent) {
	if len(ev.Body) < 2 {
		m.logger.Warn("malformed backlight change signal")
		return
	}
	device, _ := ev.Body[0].(string)
	level, ok := ev.Body[1].(float64)
	if !ok {
		m.logger.Warn("malformed backlight change signal")
		return
	}

	old := m.store.Backlight()
	if old == level {
		return
	}
	m.store.SetBacklight(level)
	m.rt.Publish(bus.TopicBacklightChanged, bus.BacklightChange{Old: old, New: level})
	m.logger.Debug("external backlight change",
		log.String("device", device),
		log.Float("level", level))
}

// probeSensor queries sensor availability, records it, and announces
// changes. It returns the current availability.
func (m *Module) probeSensor() bool {
	sensor, available, err := m.actuator.IsAvailable(m.ctx, m.device)
	if err != nil {
		m.logger.Warn("sensor availability check failed", log.Error(err))
		available = false
		sensor = ""
	}

	old := m.store.SensorAvailable()
	m.store.SetSensor(available, sensor)
	if available != old {
		m.logger.Info("ambient sensor availability changed",
			log.Bool("available", available),
			log.String("sensor", sensor))
		m.rt.Publish(bus.TopicSensorChanged, bus.SensorChange{
			Old:    old,
			New:    available,
			Sensor: sensor,
		})
	}
	return available
}

// setReason updates one pause reason and drives the pause/resume
// transition when the set becomes non-empty or empty.
func (m *Module) setReason(r PauseReason, on bool) {
	old := m.paused.get()
	next := old.With(r, on)
	if next == old {
		return
	}
	m.paused.set(next)

	switch {
	case old == 0 && next != 0:
		m.enterPaused()
	case old != 0 && next == 0:
		m.exitPaused()
	default:
		m.logger.Debug("pause reasons updated", log.String("reasons", next.String()))
	}
}

// enterPaused swaps in the paused behavior and stops the capture cycle.
func (m *Module) enterPaused() {
	if err := m.rt.Become(m.receivePaused); err != nil {
		m.logger.Error("cannot enter paused behavior", log.Error(err))
		return
	}
	m.rt.RemoveSource(m.timerSrc)
	m.timer.Disarm()
	m.store.SetNextCapture(time.Time{})
	m.rt.SetPaused(true)
	m.logger.Info("automatic calibration paused",
		log.String("reasons", m.paused.get().String()))
}

// exitPaused restores the active behavior and starts a fresh cycle when
// the current interval allows one.
func (m *Module) exitPaused() {
	if err := m.rt.Unbecome(); err != nil {
		m.logger.Error("cannot leave paused behavior", log.Error(err))
		return
	}
	m.rt.SetPaused(false)
	// Arm before re-registering the source so a tick buffered while
	// paused cannot surface as a stale wakeup.
	m.armImmediate()
	m.rt.AddSource(m.timerSrc)
	m.logger.Info("automatic calibration resumed")
}

// effectiveTimeout returns the interval the current power source and
// effective daytime bucket select.
func (m *Module) effectiveTimeout() time.Duration {
	return m.timeouts[m.store.PowerSource()][m.store.EffectiveBucket()]
}

func (m *Module) arm(d time.Duration) {
	m.store.SetEffectiveTimeout(d)
	if d > 0 {
		m.timer.Arm(d)
		m.store.SetNextCapture(time.Now().Add(d))
	} else {
		m.timer.Disarm()
		m.store.SetNextCapture(time.Time{})
	}
}

func (m *Module) armImmediate() {
	m.store.SetEffectiveTimeout(m.effectiveTimeout())
	if m.effectiveTimeout() > 0 {
		m.timer.ArmImmediate()
		m.store.SetNextCapture(time.Now())
	} else {
		m.timer.Disarm()
		m.store.SetNextCapture(time.Time{})
	}
}

func (m *Module) rearmFrom(d time.Duration) {
	m.store.SetEffectiveTimeout(d)
	if d > 0 {
		m.timer.RearmFrom(d)
		m.store.SetNextCapture(time.Now().Add(m.timer.Remaining()))
	} else {
		m.timer.Disarm()
		m.store.SetNextCapture(time.Time{})
	}
}

func (m *Module) dropStale(msg bus.Message) {
	m.logger.Debug("dropping superseded request",
		log.String("topic", msg.Topic.String()))
}
