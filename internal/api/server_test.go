package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/config"
	"github.com/banshee-data/motion.trace/internal/imu"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/session"
	"github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/store"
	"github.com/banshee-data/motion.trace/internal/timeutil"
	"github.com/banshee-data/motion.trace/internal/tracking"
)

func init() {
	monitoring.SetLogger(nil)
}

const testTick = 20 * time.Millisecond

type fixture struct {
	server  *Server
	ts      *httptest.Server
	sess    *session.Session
	clock   *timeutil.MockClock
	baseURL string
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()

	gen, err := signal.NewDemoGenerator(signal.DefaultDemoConfig())
	require.NoError(t, err)
	tracker, err := tracking.NewTracker(tracking.DefaultConfig())
	require.NoError(t, err)

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	sessCfg := session.DefaultConfig()
	sessCfg.TickInterval = testTick
	sess, err := session.New(gen, tracker, sessCfg, clock)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	var db *store.DB
	if withStore {
		db, err = store.NewDB(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}

	srv := NewServer(sess, db, config.EmptySimConfig())
	ts := httptest.NewServer(srv.ServeMux())
	t.Cleanup(ts.Close)

	return &fixture{server: srv, ts: ts, sess: sess, clock: clock, baseURL: ts.URL}
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.baseURL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.baseURL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// runTicks drives the mock clock until the session has processed n more
// trajectory points.
func (f *fixture) runTicks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		before := f.sess.Status().Ticks
		f.clock.Advance(testTick)
		require.Eventually(t, func() bool {
			return f.sess.Status().Ticks > before
		}, time.Second, time.Millisecond)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	f := newFixture(t, false)

	resp := f.post(t, "/api/session/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[session.Status](t, resp)
	require.Equal(t, session.StateRunning, st.State)

	// Double start is a client error.
	resp = f.post(t, "/api/session/start", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/api/session/pause", "")
	require.Equal(t, session.StatePaused, decode[session.Status](t, resp).State)

	resp = f.post(t, "/api/session/resume", "")
	require.Equal(t, session.StateRunning, decode[session.Status](t, resp).State)

	resp = f.post(t, "/api/session/stop", "")
	require.Equal(t, session.StateStopped, decode[session.Status](t, resp).State)

	// Lifecycle endpoints are POST-only.
	resp = f.get(t, "/api/session/start")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, false)

	resp := f.get(t, "/api/session/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[session.Status](t, resp)
	require.Equal(t, session.StateStopped, st.State)
	require.Equal(t, signal.ModeDemo, st.Mode)
	require.NotEmpty(t, st.SessionID)
}

func TestSpeedEndpoint(t *testing.T) {
	f := newFixture(t, false)

	resp := f.post(t, "/api/session/speed", `{"speed": 2.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2.5, decode[session.Status](t, resp).Speed)

	resp = f.post(t, "/api/session/speed", `{"speed": -1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/api/session/speed", `not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestModeEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 3)

	resp := f.post(t, "/api/session/mode", `{"mode": "random", "random_seed": 7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[session.Status](t, resp)
	require.Equal(t, signal.ModeRandom, st.Mode)
	require.Equal(t, 3, st.Points) // mode switch keeps the trajectory

	resp = f.post(t, "/api/session/mode", `{"mode": "hyperspace"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/api/session/mode", `{"mode": "replay"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestConfigEndpoints(t *testing.T) {
	f := newFixture(t, false)

	resp := f.get(t, "/api/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.post(t, "/api/config", `{"smoothing_alpha": 0.5, "speed": 3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decode[config.SimConfig](t, resp)
	require.NotNil(t, cfg.SmoothingAlpha)
	require.Equal(t, 0.5, *cfg.SmoothingAlpha)

	// Applied live to the running components.
	require.Equal(t, 0.5, f.sess.Tracker().Config().SmoothingAlpha)
	require.Equal(t, 3.0, f.sess.Speed())

	resp = f.post(t, "/api/config", `{"smoothing_alpha": 9}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTrajectoryEndpoints(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 5)

	resp := f.get(t, "/api/trajectory")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		SessionID string                `json:"session_id"`
		Points    []imu.TrajectoryPoint `json:"points"`
	}](t, resp)
	require.Len(t, body.Points, 5)

	resp = f.get(t, "/api/trajectory?limit=2")
	require.Len(t, decode[struct {
		Points []imu.TrajectoryPoint `json:"points"`
	}](t, resp).Points, 2)

	resp = f.get(t, "/api/trajectory?limit=bogus")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.get(t, "/api/trajectory.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), "timestamp,position_x"))
	require.Equal(t, 6, strings.Count(buf.String(), "\n")) // header + 5 rows
}

func TestChartEndpoints(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 5)

	resp := f.get(t, "/api/charts/trajectory")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var html bytes.Buffer
	_, err := html.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, html.String(), "echarts")

	resp = f.get(t, "/api/charts/trajectory.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var png bytes.Buffer
	_, err = png.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png.Bytes(), []byte{0x89, 'P', 'N', 'G'}))
}

func TestSummaryEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 5)

	resp := f.get(t, "/api/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[map[string]interface{}](t, resp)
	require.EqualValues(t, 5, sum["points"])
}

func TestRecordingsFlow(t *testing.T) {
	f := newFixture(t, true)
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 10)
	f.post(t, "/api/session/stop", "").Body.Close()

	// Save.
	resp := f.post(t, "/api/recordings", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saved := decode[struct {
		RecordingID string `json:"recording_id"`
		SampleCount int    `json:"sample_count"`
	}](t, resp)
	require.NotEmpty(t, saved.RecordingID)
	require.Equal(t, 10, saved.SampleCount)

	// List.
	resp = f.get(t, "/api/recordings")
	list := decode[struct {
		Recordings []store.RecordingMeta `json:"recordings"`
	}](t, resp)
	require.Len(t, list.Recordings, 1)

	// Fetch by ID.
	resp = f.get(t, "/api/recordings/"+saved.RecordingID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Arm replay: session resets and is left stopped in replay mode.
	resp = f.post(t, fmt.Sprintf("/api/recordings/%s/replay", saved.RecordingID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	st := f.sess.Status()
	require.Equal(t, session.StateStopped, st.State)
	require.Equal(t, signal.ModeReplay, st.Mode)
	require.Zero(t, st.Points)

	// Replay runs to completion and auto-stops.
	f.post(t, "/api/session/start", "").Body.Close()
	f.runTicks(t, 10)
	for i := 0; i < 3; i++ {
		f.clock.Advance(testTick)
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		st := f.sess.Status()
		return st.ReplayComplete && st.State == session.StateStopped
	}, time.Second, time.Millisecond)
	require.Equal(t, 10, f.sess.Status().Points)

	// Delete.
	req, err := http.NewRequest(http.MethodDelete, f.baseURL+"/api/recordings/"+saved.RecordingID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.get(t, "/api/recordings/"+saved.RecordingID)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestRecordingsWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/api/recordings")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestSaveRecordingWithoutSamples(t *testing.T) {
	f := newFixture(t, true)
	resp := f.post(t, "/api/recordings", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestVersionEndpoint(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/api/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[map[string]string](t, resp)
	require.NotEmpty(t, v["version"])
}

func TestStreamDeliversEvents(t *testing.T) {
	f := newFixture(t, false)
	f.post(t, "/api/session/start", "").Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// Feed ticks while the scanner waits for the first event.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				f.clock.Advance(testTick)
				time.Sleep(2 * time.Millisecond)
			}
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var point imu.TrajectoryPoint
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &point))
		require.Greater(t, point.Timestamp, 0.0)
		return
	}
	t.Fatal("stream closed before any event arrived")
}
