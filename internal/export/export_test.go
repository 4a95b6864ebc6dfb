package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/imu"
	"github.com/banshee-data/motion.trace/internal/monitoring"
	"github.com/banshee-data/motion.trace/internal/signal"
	"github.com/banshee-data/motion.trace/internal/tracking"
)

func init() {
	monitoring.SetLogger(nil)
}

func samplePoint(ts float64) imu.TrajectoryPoint {
	return imu.TrajectoryPoint{
		Timestamp:          ts,
		Position:           imu.Vec2{X: 1.25, Y: -0.5},
		Velocity:           imu.Vec2{X: 0.1, Y: 0.2},
		Acceleration:       imu.Vec3{X: 0.01, Y: 0.02, Z: 0.03},
		Orientation:        imu.Identity(),
		CumulativeDistance: 3.75,
		VelocityMagnitude:  0.223,
	}
}

func TestWriteTrajectoryCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTrajectoryCSV(&buf, []imu.TrajectoryPoint{samplePoint(0.02), samplePoint(0.04)})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "0.02", records[1][0])
	require.Equal(t, "1.25", records[1][1])
	require.Equal(t, "3.75", records[1][11])
}

func TestWriteTrajectoryCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrajectoryCSV(&buf, nil))
	require.Equal(t, 1, strings.Count(buf.String(), "\n")) // header only
}

func makeSamples(t *testing.T, n int) []imu.SensorSample {
	t.Helper()
	out := make([]imu.SensorSample, n)
	for i := range out {
		s, err := imu.NewSensorSample(
			float64(i)*0.02,
			imu.Vec3{X: 0.1 * float64(i), Z: imu.StandardGravity},
			imu.Vec3{Z: 0.01},
			imu.Identity(),
			imu.Vec3{X: 22, Y: 0.5, Z: -43},
		)
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func TestRecordingRoundTrip(t *testing.T) {
	rec := Recording{
		SessionID: "abc123",
		Mode:      "demo",
		CreatedAt: "2026-08-30T10:00:00Z",
		Samples:   makeSamples(t, 5),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecording(&buf, rec))

	got, err := ReadRecording(&buf)
	require.NoError(t, err)
	require.Equal(t, rec.SessionID, got.SessionID)
	require.Equal(t, rec.Mode, got.Mode)
	require.Equal(t, rec.Samples, got.Samples)
}

// A saved recording must replay through the tracker to the identical
// trajectory the original run produced.
func TestRecordingReplayReproducesTrajectory(t *testing.T) {
	gen, err := signal.NewDemoGenerator(signal.DefaultDemoConfig())
	require.NoError(t, err)

	var samples []imu.SensorSample
	for i := 0; i < 50; i++ {
		s, err := gen.NextSample(0.02, 1)
		require.NoError(t, err)
		samples = append(samples, s)
	}

	run := func(in []imu.SensorSample) []imu.TrajectoryPoint {
		tracker, err := tracking.NewTracker(tracking.DefaultConfig())
		require.NoError(t, err)
		for _, s := range in {
			_, err := tracker.Process(s)
			require.NoError(t, err)
		}
		return tracker.Snapshot()
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecording(&buf, Recording{Mode: "demo", Samples: samples}))
	rec, err := ReadRecording(&buf)
	require.NoError(t, err)
	loaded, skipped := LoadSamples(rec)
	require.Zero(t, skipped)

	require.Equal(t, run(samples), run(loaded))
}

func TestLoadSamplesSkipsMalformed(t *testing.T) {
	samples := makeSamples(t, 4)
	samples[1].LinearAcceleration.X = float64(int64(1) << 62)
	samples[1].Orientation = imu.Quat{}         // zero quaternion fails validation
	samples[2].Timestamp = samples[0].Timestamp // regresses

	loaded, skipped := LoadSamples(Recording{Samples: samples})
	require.Equal(t, 2, skipped)
	require.Len(t, loaded, 2)
	require.Equal(t, samples[0].Timestamp, loaded[0].Timestamp)
	require.Equal(t, samples[3].Timestamp, loaded[1].Timestamp)
}
