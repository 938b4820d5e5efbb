// Package api exposes the signal engine over HTTP: a status poll path for
// the dashboard, the vision-pipeline count push, the emergency trigger pair,
// and a couple of demo/diagnostic endpoints.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crossway-systems/signalctl/internal/config"
	"github.com/crossway-systems/signalctl/internal/httputil"
	"github.com/crossway-systems/signalctl/internal/signal"
	"github.com/crossway-systems/signalctl/internal/version"
)

var log = logrus.WithField("module", "api")

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type Server struct {
	engine *signal.Engine
	cfg    *config.SignalConfig
}

func NewServer(engine *signal.Engine, cfg *config.SignalConfig) *Server {
	return &Server{
		engine: engine,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Infof(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/signal/status", s.showStatus)
	mux.HandleFunc("/signal/count", s.updateCount)
	mux.HandleFunc("/signal/emergency", s.triggerEmergency)
	mux.HandleFunc("/signal/emergency/stop", s.stopEmergency)
	mux.HandleFunc("/signal/tick", s.tickSignal)
	mux.HandleFunc("/signal/compute", s.computeDuration)
	mux.HandleFunc("/config", s.showConfig)
	return mux
}

// showStatus returns the full junction snapshot. Polled by the dashboard at
// 1-3s intervals, so it must never contend with the tick path.
func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Snapshot())
}

// updateCount records the latest vision-pipeline vehicle count for the real
// lane. No rate limit: last write wins.
func (s *Server) updateCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if r.URL.Query().Get("vehicles") == "" {
		httputil.BadRequest(w, "missing 'vehicles' parameter")
		return
	}
	n, err := httputil.IntParam(r, "vehicles", 0, 0, 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.engine.SetRealCount(n)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"message":         fmt.Sprintf("real lane updated with %d vehicles", n),
		"junction_status": s.engine.Snapshot(),
	})
}

// triggerEmergency forces the named lane green until emergency/stop. Both
// the automated ambulance detection and the manual simulate-emergency button
// land here.
func (s *Server) triggerEmergency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	lane := r.URL.Query().Get("lane")
	if lane == "" {
		httputil.BadRequest(w, "missing 'lane' parameter")
		return
	}
	if err := s.engine.Trigger(signal.Lane(lane)); err != nil {
		if errors.Is(err, signal.ErrInvalidLane) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.engine.Snapshot())
}

// stopEmergency clears the override and resumes the normal cycle. Idempotent.
func (s *Server) stopEmergency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.engine.Deactivate()
	httputil.WriteJSONOK(w, s.engine.Snapshot())
}

// tickSignal manually advances the signal timer, for demo and testing. The
// production driver ticks the engine itself; this endpoint just fast-forwards.
func (s *Server) tickSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	seconds, err := httputil.IntParam(r, "seconds", 1, 1, 60)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.engine.TickN(seconds)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"ticked_seconds":  seconds,
		"junction_status": s.engine.Snapshot(),
	})
}

// computeDuration runs the fuzzy inference for a hypothetical count without
// touching the junction state.
func (s *Server) computeDuration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if r.URL.Query().Get("vehicles") == "" {
		httputil.BadRequest(w, "missing 'vehicles' parameter")
		return
	}
	n, err := httputil.IntParam(r, "vehicles", 0, 0, 100)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"vehicle_count":          n,
		"green_duration_seconds": s.engine.GreenDuration(n),
		"traffic_level":          s.engine.TrafficLevel(n),
	})
}

// showConfig echoes the effective tuning so operators can confirm what the
// engine is actually running with.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"version":                 version.Version,
		"listen":                  s.cfg.GetListen(),
		"tick_interval":           s.cfg.GetTickInterval().String(),
		"sim_refresh_interval":    s.cfg.GetSimRefreshInterval().String(),
		"max_simulated_vehicles":  s.cfg.GetMaxSimulatedVehicles(),
		"med_count":               s.cfg.GetMedCount(),
		"high_count":              s.cfg.GetHighCount(),
		"min_duration_seconds":    s.cfg.GetMinDuration(),
		"short_duration_seconds":  s.cfg.GetShortDuration(),
		"medium_duration_seconds": s.cfg.GetMediumDuration(),
		"long_duration_seconds":   s.cfg.GetLongDuration(),
		"max_duration_seconds":    s.cfg.GetMaxDuration(),
		"cycle_order":             s.cfg.GetCycleOrder(),
	})
}
