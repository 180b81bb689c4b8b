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

package control

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/calib"
	"github.com/tombee/lumen/internal/journal"
	"github.com/tombee/lumen/internal/state"
)

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	State         state.Snapshot    `json:"state"`
	Modules       map[string]string `json:"modules"`
	PauseReasons  string            `json:"pause_reasons"`
	UptimeSeconds int64             `json:"uptime_seconds"`
}

// BacklightRequest is the body of POST /v1/backlight.
type BacklightRequest struct {
	Level float64 `json:"level"`

	// Smooth selects a stepped transition with Step increments every
	// Delay. Delay is a duration string like "30ms".
	Smooth bool    `json:"smooth,omitempty"`
	Step   float64 `json:"step,omitempty"`
	Delay  string  `json:"delay,omitempty"`
}

// CaptureRequest is the body of POST /v1/capture.
type CaptureRequest struct {
	ResetTimer  bool `json:"reset_timer,omitempty"`
	CaptureOnly bool `json:"capture_only,omitempty"`
}

// TimeoutRequest is the body of PUT /v1/timeouts. Timeout is a duration
// string like "10m"; zero disables automatic captures for the entry.
type TimeoutRequest struct {
	Source  string `json:"source"`
	Bucket  string `json:"bucket"`
	Timeout string `json:"timeout"`
}

// CurveRequest is the body of PUT /v1/curve. Empty points refit the
// stored curve.
type CurveRequest struct {
	Source string    `json:"source"`
	Points []float64 `json:"points,omitempty"`
}

// AutocalibRequest is the body of PUT /v1/autocalib.
type AutocalibRequest struct {
	Disabled bool `json:"disabled"`
}

// DisplayRequest is the body of POST /v1/display.
type DisplayRequest struct {
	Dimmed bool `json:"dimmed"`
}

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	Readings []journal.Entry `json:"readings"`
	Count    int             `json:"count"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "lumend",
		"version": s.version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	modules := make(map[string]string)
	for name, lc := range s.loop.ModuleStates() {
		modules[name] = lc.String()
	}

	reasons := "none"
	if s.pause != nil {
		reasons = s.pause().String()
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		State:         s.state.Snapshot(),
		Modules:       modules,
		PauseReasons:  reasons,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleBacklight(w http.ResponseWriter, r *http.Request) {
	var req BacklightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Level < 0 || req.Level > 1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("level must be in [0, 1], got %g", req.Level))
		return
	}
	if req.Step < 0 {
		writeError(w, http.StatusBadRequest, "step must be non-negative")
		return
	}

	var delay time.Duration
	if req.Delay != "" {
		var err error
		delay, err = time.ParseDuration(req.Delay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid delay format: "+err.Error())
			return
		}
		if delay < 0 {
			writeError(w, http.StatusBadRequest, "delay must be non-negative")
			return
		}
	}

	s.inject(bus.TopicBacklightRequest, bus.BacklightRequest{
		Level:     req.Level,
		Smooth:    req.Smooth,
		Step:      req.Step,
		StepDelay: delay,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !s.captureLimit.Allow() {
		writeError(w, http.StatusTooManyRequests, "capture rate limit exceeded")
		return
	}

	var req CaptureRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	s.inject(bus.TopicCaptureRequest, bus.CaptureRequest{
		ResetTimer:  req.ResetTimer,
		CaptureOnly: req.CaptureOnly,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleTimeouts(w http.ResponseWriter, r *http.Request) {
	var req TimeoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	source, err := bus.ParsePowerSource(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bucket, err := bus.ParseDaytimeBucket(req.Bucket)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeout, err := time.ParseDuration(req.Timeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeout format: "+err.Error())
		return
	}
	if timeout < 0 {
		writeError(w, http.StatusBadRequest, "timeout must be non-negative")
		return
	}

	s.inject(bus.TopicTimeoutRequest, bus.TimeoutRequest{
		Source:  source,
		Bucket:  bucket,
		Timeout: timeout,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	var req CurveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	source, err := bus.ParsePowerSource(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Points) > 0 {
		if err := calib.ValidatePoints(req.Points); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.inject(bus.TopicCurveRequest, bus.CurveRequest{
		Source: source,
		Points: req.Points,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleAutocalib(w http.ResponseWriter, r *http.Request) {
	var req AutocalibRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s.inject(bus.TopicAutocalibRequest, bus.AutocalibRequest{Disabled: req.Disabled})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	var req DisplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s.inject(bus.TopicDisplayRequest, bus.DisplayRequest{Dimmed: req.Dimmed})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != journal.KindAmbient && kind != journal.KindBacklight {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown reading kind %q", kind))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}

	readings, err := s.journal.Recent(r.Context(), kind, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read journal: "+err.Error())
		return
	}
	if readings == nil {
		readings = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Readings: readings,
		Count:    len(readings),
	})
}
