package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/motion.trace/internal/charts"
	"github.com/banshee-data/motion.trace/internal/export"
	"github.com/banshee-data/motion.trace/internal/httputil"
	"github.com/banshee-data/motion.trace/internal/imu"
)

// snapshot returns the trajectory, optionally truncated to the most
// recent limit points from the query string.
func (s *Server) snapshot(r *http.Request) ([]imu.TrajectoryPoint, error) {
	points := s.sess.Tracker().Snapshot()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("limit must be a positive integer, got %q", raw)
		}
		if len(points) > limit {
			points = points[len(points)-limit:]
		}
	}
	return points, nil
}

func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	points, err := s.snapshot(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id": s.sess.ID(),
		"points":     points,
	})
}

func (s *Server) handleTrajectoryCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	points, err := s.snapshot(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trajectory.csv"`)
	if err := export.WriteTrajectoryCSV(w, points); err != nil {
		// Headers are already out; log and abandon the response.
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleScatterChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	points, err := s.snapshot(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	title := fmt.Sprintf("Trajectory (%s)", s.sess.Status().Mode)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.RenderScatterHTML(w, points, title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
	}
}

func (s *Server) handlePathPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	points, err := s.snapshot(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	title := fmt.Sprintf("Trajectory (%s)", s.sess.Status().Mode)
	w.Header().Set("Content-Type", "image/png")
	if err := charts.RenderPathPNG(w, points, title); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render png: %v", err))
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, charts.Summarise(s.sess.Tracker().Snapshot()))
}
