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

// Package control serves the daemon's HTTP API over a Unix socket.
// Mutating endpoints are translated into stamped bus requests injected
// into the event loop, so an HTTP caller and an internal producer race
// under the same freshness rules.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tombee/lumen/internal/backlight"
	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/journal"
	"github.com/tombee/lumen/internal/log"
	"github.com/tombee/lumen/internal/module"
	"github.com/tombee/lumen/internal/state"
)

// VersionInfo identifies the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// Params configures the control server.
type Params struct {
	// Loop is the event loop requests are injected into.
	Loop *module.Loop

	// State backs the status endpoint.
	State *state.Store

	// Journal backs the history endpoint. Nil when journaling is
	// disabled.
	Journal *journal.Store

	// Pause reports calibration pause reasons for the status endpoint.
	// Optional.
	Pause func() backlight.PauseSet

	// Metrics is the metrics endpoint handler. Nil disables the route.
	Metrics http.Handler

	// CaptureRate and CaptureBurst bound explicit capture cycles per
	// second; each one wakes the sensor hardware. Zero values keep the
	// defaults.
	CaptureRate  float64
	CaptureBurst int

	Version VersionInfo
	Logger  *slog.Logger
}

// Server is the control API server.
type Server struct {
	mux     *http.ServeMux
	srv     *http.Server
	loop    *module.Loop
	state   *state.Store
	journal *journal.Store
	pause   func() backlight.PauseSet
	version VersionInfo
	logger  *slog.Logger
	started time.Time

	// captureLimit bounds explicit capture cycles; each one wakes the
	// sensor hardware.
	captureLimit *rate.Limiter
}

// New builds the server and registers its routes.
func New(p Params) *Server {
	if p.CaptureRate <= 0 {
		p.CaptureRate = 1
	}
	if p.CaptureBurst <= 0 {
		p.CaptureBurst = 3
	}
	s := &Server{
		mux:          http.NewServeMux(),
		loop:         p.Loop,
		state:        p.State,
		journal:      p.Journal,
		pause:        p.Pause,
		version:      p.Version,
		logger:       log.WithComponent(p.Logger, "control"),
		started:      time.Now(),
		captureLimit: rate.NewLimiter(rate.Limit(p.CaptureRate), p.CaptureBurst),
	}

	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /v1/version", s.handleVersion)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("POST /v1/backlight", s.handleBacklight)
	s.mux.HandleFunc("POST /v1/capture", s.handleCapture)
	s.mux.HandleFunc("PUT /v1/timeouts", s.handleTimeouts)
	s.mux.HandleFunc("PUT /v1/curve", s.handleCurve)
	s.mux.HandleFunc("PUT /v1/autocalib", s.handleAutocalib)
	s.mux.HandleFunc("POST /v1/display", s.handleDisplay)
	s.mux.HandleFunc("GET /v1/history", s.handleHistory)
	s.mux.HandleFunc("GET /", s.handleRoot)

	if p.Metrics != nil {
		s.mux.HandleFunc("GET /metrics", p.Metrics.ServeHTTP)
	}

	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// ServeHTTP implements http.Handler, wrapping the routes with request
// ID assignment and request logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)
	logger := log.WithRequestID(s.logger, requestID)

	defer func() {
		logger.Info("request completed",
			log.String("method", req.Method),
			log.String("path", req.URL.Path),
			log.Duration("duration_ms", time.Since(start).Milliseconds()),
		)
	}()

	s.mux.ServeHTTP(w, req)
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// inject stamps a request and queues it for publication on the loop.
func (s *Server) inject(t bus.Topic, data any) {
	s.loop.Inject(s.loop.Bus().NewRequest(t, data))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
