package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.trace/internal/imu"
)

func collect(t *testing.T, g Generator, n int, dt, speed float64) []imu.SensorSample {
	t.Helper()
	out := make([]imu.SensorSample, 0, n)
	for i := 0; i < n; i++ {
		s, err := g.NextSample(dt, speed)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestDemoDeterminism(t *testing.T) {
	a, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)
	b, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)

	sa := collect(t, a, 400, 0.01, 1.0)
	sb := collect(t, b, 400, 0.01, 1.0)
	assert.Equal(t, sa, sb, "identical config and time base must produce identical streams")
}

func TestDemoTimestampsStrictlyIncrease(t *testing.T) {
	g, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)
	samples := collect(t, g, 200, 0.02, 1.5)
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, samples[i].Timestamp, samples[i-1].Timestamp)
	}
}

func TestDemoPatternThresholds(t *testing.T) {
	cfg := DefaultDemoConfig()
	g, err := NewDemoGenerator(cfg)
	require.NoError(t, err)

	// Walk to the middle of each pattern window and check the active name.
	expect := []struct {
		at      float64
		pattern string
	}{
		{cfg.LineDuration / 2, PatternLine},
		{cfg.LineDuration + cfg.CircleDuration/2, PatternCircle},
		{cfg.LineDuration + cfg.CircleDuration + cfg.FigureEightDuration/2, PatternFigureEight},
		{cfg.LineDuration + cfg.CircleDuration + cfg.FigureEightDuration + cfg.StippleDuration/2, PatternStipple},
	}
	for _, e := range expect {
		g.Reset()
		_, err := g.NextSample(e.at, 1.0)
		require.NoError(t, err)
		assert.Equal(t, e.pattern, g.Pattern(), "at t=%v", e.at)
	}

	// The cycle wraps: one full cycle later the same pattern is active.
	g.Reset()
	_, err = g.NextSample(g.cycleLength()+cfg.LineDuration/2, 1.0)
	require.NoError(t, err)
	assert.Equal(t, PatternLine, g.Pattern())
}

func TestDemoCircleCentripetalMagnitude(t *testing.T) {
	cfg := DefaultDemoConfig()
	g, err := NewDemoGenerator(cfg)
	require.NoError(t, err)

	// Step into the circle pattern and strip gravity: the planar motion
	// acceleration magnitude must stay at CircleAccel.
	_, err = g.NextSample(cfg.LineDuration+0.5, 1.0)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		s, err := g.NextSample(0.02, 1.0)
		require.NoError(t, err)
		if g.Pattern() != PatternCircle {
			break
		}
		motion := s.LinearAcceleration.Sub(s.Orientation.RotateInverse(imu.Vec3{Z: cfg.Gravity}))
		planar := math.Hypot(motion.X, motion.Y)
		assert.InDelta(t, cfg.CircleAccel, planar, 1e-9)
	}
}

func TestDemoSpeedMultiplierScalesPhase(t *testing.T) {
	a, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)
	b, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)

	// dt=0.01 at speed 2 must advance phase identically to dt=0.02 at speed 1.
	sa, err := a.NextSample(0.01, 2.0)
	require.NoError(t, err)
	sb, err := b.NextSample(0.02, 1.0)
	require.NoError(t, err)
	assert.Equal(t, sb, sa)
}

func TestRandomDeterminismAndBounds(t *testing.T) {
	cfg := DefaultRandomConfig(42)
	a, err := NewRandomGenerator(cfg)
	require.NoError(t, err)
	b, err := NewRandomGenerator(cfg)
	require.NoError(t, err)

	sa := collect(t, a, 500, 0.01, 1.0)
	sb := collect(t, b, 500, 0.01, 1.0)
	assert.Equal(t, sa, sb, "same seed must reproduce the stream")

	// Motion acceleration stays bounded by the configured amplitudes.
	bound := cfg.AccelAmp + cfg.PressureAmp + cfg.NoiseAmp + 1.0
	for _, s := range sa {
		motion := s.LinearAcceleration.Sub(s.Orientation.RotateInverse(imu.Vec3{Z: cfg.Gravity}))
		assert.Less(t, motion.Norm(), bound)
		assert.True(t, s.Orientation.IsUnit())
	}
}

func TestRandomResetReplaysSession(t *testing.T) {
	g, err := NewRandomGenerator(DefaultRandomConfig(7))
	require.NoError(t, err)

	first := collect(t, g, 100, 0.01, 1.0)
	g.Reset()
	second := collect(t, g, 100, 0.01, 1.0)
	assert.Equal(t, first, second)
}

func TestRandomConfigValidation(t *testing.T) {
	cfg := DefaultRandomConfig(1)
	cfg.SinusoidCount = 9
	_, err := NewRandomGenerator(cfg)
	assert.Error(t, err)

	cfg = DefaultRandomConfig(1)
	cfg.MaxFreq = cfg.MinFreq
	_, err = NewRandomGenerator(cfg)
	assert.Error(t, err)
}

func TestDemoRejectsNonPositiveStep(t *testing.T) {
	g, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)
	_, err = g.NextSample(0, 1.0)
	assert.Error(t, err)
	_, err = g.NextSample(0.01, -1.0)
	assert.Error(t, err)
}

func replayFixture(t *testing.T, n int) []imu.SensorSample {
	t.Helper()
	g, err := NewDemoGenerator(DefaultDemoConfig())
	require.NoError(t, err)
	return collect(t, g, n, 0.05, 1.0)
}

func TestReplayEmitsRecordsInOrder(t *testing.T) {
	records := replayFixture(t, 20)
	g, err := NewReplayGenerator(records, records[0].Timestamp)
	require.NoError(t, err)

	for i := range records {
		s, err := g.NextSample(0.05, 1.0)
		require.NoError(t, err)
		assert.InDelta(t, records[i].Timestamp, s.Timestamp, 1e-12)
		s.Timestamp = records[i].Timestamp
		assert.Equal(t, records[i], s)
	}
}

func TestReplayExhaustionIsSentinel(t *testing.T) {
	records := replayFixture(t, 3)
	g, err := NewReplayGenerator(records, 0)
	require.NoError(t, err)

	collect(t, g, 3, 0.05, 1.0)
	_, err = g.NextSample(0.05, 1.0)
	assert.ErrorIs(t, err, ErrReplayComplete)
	// Stays exhausted until reset.
	_, err = g.NextSample(0.05, 1.0)
	assert.ErrorIs(t, err, ErrReplayComplete)

	g.Reset()
	assert.Equal(t, 3, g.Remaining())
	_, err = g.NextSample(0.05, 1.0)
	assert.NoError(t, err)
}

func TestReplaySpeedScalesSpacing(t *testing.T) {
	records := replayFixture(t, 10)
	g, err := NewReplayGenerator(records, 100.0)
	require.NoError(t, err)

	out := collect(t, g, 10, 0.05, 2.0)
	for i := 1; i < len(out); i++ {
		recorded := records[i].Timestamp - records[i-1].Timestamp
		replayed := out[i].Timestamp - out[i-1].Timestamp
		assert.InDelta(t, recorded/2, replayed, 1e-12)
	}
	assert.InDelta(t, 100.0, out[0].Timestamp, 1e-12)
}

func TestReplaySpeedChangeKeepsTimeIncreasing(t *testing.T) {
	records := replayFixture(t, 10)
	g, err := NewReplayGenerator(records, 0)
	require.NoError(t, err)

	out := collect(t, g, 5, 0.05, 1.0)
	last := out[len(out)-1].Timestamp

	// Raising the multiplier mid-replay compresses the remaining spacing
	// but must never move emitted time backwards.
	for i := 5; i < 10; i++ {
		s, err := g.NextSample(0.05, 2.0)
		require.NoError(t, err)
		require.Greater(t, s.Timestamp, last)
		recorded := records[i].Timestamp - records[i-1].Timestamp
		assert.InDelta(t, recorded/2, s.Timestamp-last, 1e-12)
		last = s.Timestamp
	}
}

func TestReplayRejectsUnorderedRecords(t *testing.T) {
	records := replayFixture(t, 3)
	records[2].Timestamp = records[1].Timestamp
	_, err := NewReplayGenerator(records, 0)
	assert.Error(t, err)

	_, err = NewReplayGenerator(nil, 0)
	assert.Error(t, err)
}
