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

// Package photond is the client for the photond hardware service,
// which owns ambient light sensors and backlight devices. All calls
// are synchronous D-Bus method calls on the system bus; the daemon's
// event loop blocks for their duration, so every call carries a
// timeout.
package photond

import (
	"context"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/sysbus"
	lumenerrors "github.com/tombee/lumen/pkg/errors"
)

// Well-known names exported by photond.
const (
	Service = "org.photond"

	SensorPath    = dbus.ObjectPath("/org/photond/Sensor")
	BacklightPath = dbus.ObjectPath("/org/photond/Backlight")

	SensorInterface    = "org.photond.Sensor"
	BacklightInterface = "org.photond.Backlight"
)

// DefaultCallTimeout bounds a single hardware call. Captures of many
// frames are the slowest operation and stay well under this.
const DefaultCallTimeout = 10 * time.Second

// Smooth describes a gradual backlight transition. A zero value means
// an instant jump.
type Smooth struct {
	// Enabled turns smoothing on.
	Enabled bool

	// Step is the per-tick change in backlight level, in [0, 1].
	Step float64

	// Delay is the pause between steps, in milliseconds.
	Delay uint32
}

// Option configures a Client.
type Option func(*Client)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client issues method calls against photond and opens signal watches
// for its change notifications.
type Client struct {
	router  *sysbus.Router
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a client on an open system bus connection.
func New(router *sysbus.Router, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		router:  router,
		logger:  logger.With(slog.String("component", "photond")),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAvailable asks photond whether a usable ambient light sensor
// exists. An empty device lets photond pick. It returns the resolved
// sensor name and its availability.
func (c *Client) IsAvailable(ctx context.Context, device string) (string, bool, error) {
	var (
		sensor    string
		available bool
	)
	err := c.call(ctx, SensorPath, SensorInterface+".IsAvailable", device,
		"(sensor, available)", []interface{}{&sensor, &available}, device)
	if err != nil {
		return "", false, err
	}
	return sensor, available, nil
}

// Capture takes frames readings from the sensor and returns them
// normalized to [0, 1]. The call blocks for the whole capture.
func (c *Client) Capture(ctx context.Context, device string, frames int, settings string) (string, []float64, error) {
	var (
		sensor   string
		readings []float64
	)
	err := c.call(ctx, SensorPath, SensorInterface+".Capture", device,
		"(sensor, readings)", []interface{}{&sensor, &readings},
		device, int32(frames), settings)
	if err != nil {
		return "", nil, err
	}
	return sensor, readings, nil
}

// SetAll sets every matched backlight to pct in [0, 1]. An empty
// selector matches all devices. It reports whether photond accepted
// the change.
func (c *Client) SetAll(ctx context.Context, pct float64, smooth Smooth, selector string) (bool, error) {
	var ok bool
	err := c.call(ctx, BacklightPath, BacklightInterface+".SetAll", selector,
		"(ok)", []interface{}{&ok}, pct, smooth, selector)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Level reads the current level of the first backlight matched by
// selector.
func (c *Client) Level(ctx context.Context, selector string) (float64, error) {
	var level float64
	err := c.call(ctx, BacklightPath, BacklightInterface+".Level", selector,
		"(level)", []interface{}{&level}, selector)
	if err != nil {
		return 0, err
	}
	return level, nil
}

// WatchSensorChanged subscribes to sensor hotplug notifications. The
// signal body carries the affected device name.
func (c *Client) WatchSensorChanged() (*sysbus.Watch, error) {
	return c.router.Watch(SensorInterface, "Changed", SensorPath)
}

// WatchBacklightChanged subscribes to external backlight changes. The
// signal body carries the device name and its new level.
func (c *Client) WatchBacklightChanged() (*sysbus.Watch, error) {
	return c.router.Watch(BacklightInterface, "Changed", BacklightPath)
}

func (c *Client) call(ctx context.Context, path dbus.ObjectPath, method, device, want string, out []interface{}, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	obj := c.router.Object(Service, path)
	start := time.Now()
	dc := obj.CallWithContext(ctx, method, 0, args...)
	elapsed := time.Since(start)

	log.LogBusCall(c.logger,
		&log.BusCall{Method: method, Device: device},
		&log.BusCallResult{Err: dc.Err, Duration: elapsed})

	if dc.Err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &lumenerrors.TimeoutError{
				Operation: method,
				Duration:  c.timeout,
				Cause:     dc.Err,
			}
		}
		return &lumenerrors.CallError{
			Method:  method,
			Device:  device,
			Message: dc.Err.Error(),
			Cause:   dc.Err,
		}
	}

	if err := dc.Store(out...); err != nil {
		return &lumenerrors.DecodeError{Method: method, Want: want, Cause: err}
	}
	return nil
}
