package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/banshee-data/motion.trace/internal/export"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/security"
	"github.com/banshee-data/motion.trace/internal/store"
)

// SetRecordingsDir configures the directory and filesystem used by the
// recording file endpoints. Call before serving.
func (s *Server) SetRecordingsDir(dir string, fs fsutil.FileSystem) {
	s.recordingsDir = dir
	s.fs = fs
}

// resolveRecordingFile joins a client-supplied filename onto the
// recordings directory and rejects anything that escapes it.
func (s *Server) resolveRecordingFile(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename is required")
	}
	path := filepath.Join(s.recordingsDir, filename)
	if err := security.ValidatePathWithinDirectory(path, s.recordingsDir); err != nil {
		return "", err
	}
	return path, nil
}

// handleRecordingFiles lists .json recording files on disk.
func (s *Server) handleRecordingFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	names, err := s.fs.ListJSON(s.recordingsDir)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list recordings directory: %v", err))
		return
	}
	if names == nil {
		names = []string{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"files": names})
}

// handleRecordingImport loads a recording file from the recordings
// directory into the store.
func (s *Server) handleRecordingImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no recording store configured")
		return
	}

	var body struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	path, err := s.resolveRecordingFile(body.Filename)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("read recording file: %v", err))
		return
	}
	rec, err := export.ReadRecording(bytes.NewReader(data))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	samples, skipped := export.LoadSamples(rec)
	if len(samples) == 0 {
		httputil.BadRequest(w, fmt.Sprintf("%s has no replayable samples", body.Filename))
		return
	}
	rec.Samples = samples

	id, err := s.db.SaveRecording(rec)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"recording_id":    id,
		"sample_count":    len(samples),
		"skipped_samples": skipped,
	})
}

// exportRecordingFile writes a stored recording to the recordings
// directory as JSON.
func (s *Server) exportRecordingFile(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "no recording store configured")
		return
	}

	var body struct {
		Filename string `json:"filename"`
	}
	// The body is optional; an empty one derives the name from the ID.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Filename == "" {
		body.Filename = security.SanitizeFilename(id) + ".json"
	}

	path, err := s.resolveRecordingFile(body.Filename)
	if err != nil {
		httputil.BadRequest(w, err.Error())
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

	var buf bytes.Buffer
	if err := export.WriteRecording(&buf, rec); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if err := s.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("write recording file: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"recording_id": id,
		"file":         body.Filename,
	})
}
