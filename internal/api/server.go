// Package api exposes the HTTP surface: session lifecycle control,
// runtime configuration, trajectory data and charts, recordings, and
// the live streaming endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/motion.trace/internal/config"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/session"
	"github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/store"
	"github.com/banshee-data/motion.trace/internal/tracking"
	"github.com/banshee-data/motion.trace/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	sess *session.Session
	db   *store.DB // nil disables the recordings endpoints

	recordingsDir string
	fs            fsutil.FileSystem

	cfgMu sync.Mutex
	cfg   *config.SimConfig
}

// NewServer wires the API around a session. db may be nil when no
// recording store is configured.
func NewServer(sess *session.Session, db *store.DB, cfg *config.SimConfig) *Server {
	if cfg == nil {
		cfg = config.EmptySimConfig()
	}
	return &Server{
		sess:          sess,
		db:            db,
		cfg:           cfg,
		recordingsDir: "recordings",
		fs:            fsutil.OSFileSystem{},
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

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/session/pause", s.handlePause)
	mux.HandleFunc("/api/session/resume", s.handleResume)
	mux.HandleFunc("/api/session/reset", s.handleReset)
	mux.HandleFunc("/api/session/status", s.handleStatus)
	mux.HandleFunc("/api/session/speed", s.handleSpeed)
	mux.HandleFunc("/api/session/mode", s.handleMode)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/trajectory", s.handleTrajectory)
	mux.HandleFunc("/api/trajectory.csv", s.handleTrajectoryCSV)
	mux.HandleFunc("/api/charts/trajectory", s.handleScatterChart)
	mux.HandleFunc("/api/charts/trajectory.png", s.handlePathPNG)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/recordings", s.handleRecordings)
	mux.HandleFunc("/api/recordings/files", s.handleRecordingFiles)
	mux.HandleFunc("/api/recordings/import", s.handleRecordingImport)
	mux.HandleFunc("/api/recordings/", s.handleRecordingByID)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}

// transition runs one lifecycle call and writes the updated status.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func() error) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := op(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.sess.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sess.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sess.Stop)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sess.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sess.Resume)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.sess.Reset)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.sess.Status())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := s.sess.SetSpeed(body.Speed); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	s.cfgMu.Lock()
	s.cfg.Speed = &body.Speed
	s.cfgMu.Unlock()

	httputil.WriteJSONOK(w, s.sess.Status())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Mode       string `json:"mode"`
		RandomSeed *int64 `json:"random_seed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var gen signal.Generator
	var err error
	switch signal.Mode(body.Mode) {
	case signal.ModeDemo:
		gen, err = signal.NewDemoGenerator(signal.DefaultDemoConfig())
	case signal.ModeRandom:
		seed := s.currentConfig().GetRandomSeed()
		if body.RandomSeed != nil {
			seed = *body.RandomSeed
		}
		gen, err = signal.NewRandomGenerator(signal.DefaultRandomConfig(seed))
	case signal.ModeReplay:
		httputil.BadRequest(w, "replay mode is selected via /api/recordings/{id}/replay")
		return
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown mode %q", body.Mode))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	// Deliberately no implicit reset: the trajectory continues across a
	// mode switch. Clients call /api/session/reset for a clean slate.
	if err := s.sess.SetGenerator(gen); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	s.cfgMu.Lock()
	s.cfg.Mode = &body.Mode
	if body.RandomSeed != nil {
		s.cfg.RandomSeed = body.RandomSeed
	}
	s.cfgMu.Unlock()

	httputil.WriteJSONOK(w, s.sess.Status())
}

func (s *Server) currentConfig() *config.SimConfig {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	cp := *s.cfg
	return &cp
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.currentConfig())
	case http.MethodPost:
		var patch config.SimConfig
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := patch.Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}

		s.cfgMu.Lock()
		s.cfg.Merge(&patch)
		merged := *s.cfg
		s.cfgMu.Unlock()

		// Tracker tuning applies live; speed likewise.
		trackerCfg := tracking.Config{
			SmoothingAlpha:         merged.GetSmoothingAlpha(),
			Gravity:                merged.GetGravity(),
			DriftDecayFactor:       merged.GetDriftDecayFactor(),
			DriftDecayEverySamples: merged.GetDriftDecayEverySamples(),
			MaxTrajectoryPoints:    merged.GetMaxTrajectoryPoints(),
			MinTimestampDelta:      merged.GetMinTimestampDelta(),
		}
		if err := s.sess.Tracker().SetConfig(trackerCfg); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.sess.SetSpeed(merged.GetSpeed()); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}

		httputil.WriteJSONOK(w, &merged)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
