package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/motion.trace/internal/export"
	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/store"
)

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no recording store configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.db.ListRecordings()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if list == nil {
			list = []store.RecordingMeta{}
		}
		httputil.WriteJSONOK(w, map[string]interface{}{"recordings": list})
	case http.MethodPost:
		s.saveRecording(w)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// saveRecording captures the session's sample log as a new recording.
func (s *Server) saveRecording(w http.ResponseWriter) {
	samples := s.sess.Samples()
	if len(samples) == 0 {
		httputil.BadRequest(w, "no samples to record; run a session first")
		return
	}

	st := s.sess.Status()
	rec := export.Recording{
		SessionID: st.SessionID,
		Mode:      string(st.Mode),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Samples:   samples,
	}
	id, err := s.db.SaveRecording(rec)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"recording_id": id,
		"sample_count": len(samples),
	})
}

// handleRecordingByID routes /api/recordings/{id} and
// /api/recordings/{id}/replay.
func (s *Server) handleRecordingByID(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no recording store configured")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/recordings/")
	if rest == "" {
		httputil.NotFound(w, "missing recording id")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/replay"); ok {
		s.replayRecording(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/export"); ok {
		s.exportRecordingFile(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		httputil.NotFound(w, "unknown recordings endpoint")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.db.GetRecording(rest)
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("recording %s not found", rest))
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, rec)
	case http.MethodDelete:
		err := s.db.DeleteRecording(rest)
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("recording %s not found", rest))
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"deleted": rest})
	default:
		httputil.MethodNotAllowed(w)
	}
}

// replayRecording resets the session and installs a replay generator
// over the stored samples. The session is left stopped; the client
// starts playback explicitly.
func (s *Server) replayRecording(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	rec, err := s.db.GetRecording(id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("recording %s not found", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	samples, skipped := export.LoadSamples(rec)
	if len(samples) == 0 {
		httputil.BadRequest(w, fmt.Sprintf("recording %s has no replayable samples", id))
		return
	}

	gen, err := signal.NewReplayGenerator(samples, 0)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	if err := s.sess.Reset(); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if err := s.sess.SetGenerator(gen); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"recording_id":    id,
		"sample_count":    len(samples),
		"skipped_samples": skipped,
		"status":          s.sess.Status(),
	})
}
