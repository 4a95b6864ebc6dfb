// Package tracking converts a stream of inertial samples into a
// filtered, drift-compensated, integrated 2D trajectory with a bounded
// history buffer.
package tracking

import (
	"fmt"
	"sync"

	"github.com/banshee-data/motion.trace/internal/imu"
)

// Config holds the tracker's numerical parameters. Invalid values are
// rejected at construction; the pipeline never starts misconfigured.
type Config struct {
	// SmoothingAlpha is the first-order low-pass factor in (0,1].
	// 1 disables smoothing entirely.
	SmoothingAlpha float64

	// Gravity is the magnitude subtracted during compensation (m/s²).
	Gravity float64

	// DriftDecayFactor scales velocity at each decay boundary, < 1.
	DriftDecayFactor float64

	// DriftDecayEverySamples is the decay period. The period is
	// sample-count based: after this many processed samples the velocity
	// is multiplied by DriftDecayFactor and the counter restarts.
	DriftDecayEverySamples int

	// MaxTrajectoryPoints bounds the FIFO trajectory buffer.
	MaxTrajectoryPoints int

	// MinTimestampDelta is the floor applied to non-positive or
	// duplicate timestamp deltas (seconds).
	MinTimestampDelta float64
}

// DefaultConfig returns the stock tracker parameters.
func DefaultConfig() Config {
	return Config{
		SmoothingAlpha:         0.35,
		Gravity:                imu.StandardGravity,
		DriftDecayFactor:       0.92,
		DriftDecayEverySamples: 50,
		MaxTrajectoryPoints:    2000,
		MinTimestampDelta:      1e-4,
	}
}

// Validate checks config invariants with descriptive errors.
func (c Config) Validate() error {
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing_alpha must be in (0,1], got %v", c.SmoothingAlpha)
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %v", c.Gravity)
	}
	if c.DriftDecayFactor <= 0 || c.DriftDecayFactor >= 1 {
		return fmt.Errorf("drift_decay_factor must be in (0,1), got %v", c.DriftDecayFactor)
	}
	if c.DriftDecayEverySamples <= 0 {
		return fmt.Errorf("drift_decay_every_samples must be positive, got %d", c.DriftDecayEverySamples)
	}
	if c.MaxTrajectoryPoints <= 0 {
		return fmt.Errorf("max_trajectory_points must be positive, got %d", c.MaxTrajectoryPoints)
	}
	if c.MinTimestampDelta <= 0 {
		return fmt.Errorf("min_timestamp_delta must be positive, got %v", c.MinTimestampDelta)
	}
	return nil
}

// Tracker owns the integration state and the bounded trajectory buffer.
// Process mutates state once per sample; consumers only ever see
// snapshot copies.
type Tracker struct {
	mu  sync.Mutex
	cfg Config

	filtered imu.Vec3 // low-pass accumulator, persists across samples
	velocity imu.Vec3
	position imu.Vec3

	cumulative        float64
	lastTimestamp     float64
	haveLast          bool
	samplesSinceDecay int
	processed         uint64

	trajectory []imu.TrajectoryPoint
}

// NewTracker creates a tracker, rejecting invalid configuration.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	return &Tracker{
		cfg:        cfg,
		trajectory: make([]imu.TrajectoryPoint, 0, cfg.MaxTrajectoryPoints),
	}, nil
}

// Config returns the tracker's configuration.
func (t *Tracker) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// SetConfig swaps tuning parameters at runtime. Integration state and
// the trajectory are preserved; the new parameters apply from the next
// processed sample. Shrinking the buffer trims oldest points.
func (t *Tracker) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("tracker config: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
	if len(t.trajectory) > cfg.MaxTrajectoryPoints {
		t.trajectory = t.trajectory[len(t.trajectory)-cfg.MaxTrajectoryPoints:]
	}
	return nil
}

// Process converts one sample into one trajectory point, in fixed step
// order: filter, gravity compensation, integration, periodic drift
// decay, 2D projection, buffer append. The first processed sample only
// establishes the time base; integration starts with the second.
func (t *Tracker) Process(sample imu.SensorSample) (imu.TrajectoryPoint, error) {
	if err := sample.Validate(); err != nil {
		return imu.TrajectoryPoint{}, fmt.Errorf("reject sample: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Step 1: first-order low-pass per acceleration axis.
	alpha := t.cfg.SmoothingAlpha
	t.filtered = t.filtered.Scale(1 - alpha).Add(sample.LinearAcceleration.Scale(alpha))

	// Step 2: rotate canonical gravity into the sensor frame and strip it.
	gravity := sample.Orientation.RotateInverse(imu.Vec3{Z: t.cfg.Gravity})
	motion := t.filtered.Sub(gravity)

	// Step 3: semi-implicit Euler with the clamped timestamp delta.
	var dt float64
	if t.haveLast {
		dt = sample.Timestamp - t.lastTimestamp
		if dt < t.cfg.MinTimestampDelta {
			dt = t.cfg.MinTimestampDelta
		}
		t.velocity = t.velocity.Add(motion.Scale(dt))
		t.position = t.position.Add(t.velocity.Scale(dt))
	}
	t.lastTimestamp = sample.Timestamp
	t.haveLast = true

	// Step 4: sample-count-based drift decay. Velocity only; position is
	// untouched so the trajectory does not snap back.
	t.samplesSinceDecay++
	if t.samplesSinceDecay >= t.cfg.DriftDecayEverySamples {
		t.velocity = t.velocity.Scale(t.cfg.DriftDecayFactor)
		t.samplesSinceDecay = 0
	}

	// Numerical guard: a degenerate step must not poison the session.
	if !t.velocity.IsFinite() || !t.position.IsFinite() || !t.filtered.IsFinite() {
		t.filtered = imu.Vec3{}
		t.velocity = imu.Vec3{}
		t.position = imu.Vec3{}
	}

	// Step 5: project onto the display plane. The third axis stays in
	// the acceleration field as the pressure-like signal.
	pos2 := imu.Vec2{X: t.position.X, Y: t.position.Y}
	vel2 := imu.Vec2{X: t.velocity.X, Y: t.velocity.Y}

	// Step 6: cumulative distance and bounded FIFO append.
	if n := len(t.trajectory); n > 0 {
		t.cumulative += pos2.Sub(t.trajectory[n-1].Position).Norm()
	}
	point := imu.TrajectoryPoint{
		Timestamp:          sample.Timestamp,
		Position:           pos2,
		Velocity:           vel2,
		Acceleration:       motion,
		Orientation:        sample.Orientation,
		CumulativeDistance: t.cumulative,
		VelocityMagnitude:  vel2.Norm(),
	}
	t.trajectory = append(t.trajectory, point)
	if len(t.trajectory) > t.cfg.MaxTrajectoryPoints {
		t.trajectory = t.trajectory[len(t.trajectory)-t.cfg.MaxTrajectoryPoints:]
	}
	t.processed++

	return point, nil
}

// Reset clears the filter accumulator, velocity, position, cumulative
// distance, counters and the trajectory buffer.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filtered = imu.Vec3{}
	t.velocity = imu.Vec3{}
	t.position = imu.Vec3{}
	t.cumulative = 0
	t.lastTimestamp = 0
	t.haveLast = false
	t.samplesSinceDecay = 0
	t.processed = 0
	t.trajectory = t.trajectory[:0]
}

// Snapshot returns a copy of the current trajectory in time order.
func (t *Tracker) Snapshot() []imu.TrajectoryPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]imu.TrajectoryPoint, len(t.trajectory))
	copy(out, t.trajectory)
	return out
}

// Last returns the most recent trajectory point, if any.
func (t *Tracker) Last() (imu.TrajectoryPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.trajectory) == 0 {
		return imu.TrajectoryPoint{}, false
	}
	return t.trajectory[len(t.trajectory)-1], true
}

// Len returns the number of buffered trajectory points.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.trajectory)
}

// Processed returns the total samples processed since the last reset.
func (t *Tracker) Processed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}
