package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/motion.trace/internal/imu"
)

// RandomConfig parameterises the smooth-random generator.
type RandomConfig struct {
	StartTime float64 // timestamp of the first sample (unix seconds)
	Seed      int64   // sinusoid bank and noise seed

	SinusoidCount int     // sinusoids summed per axis (2-4)
	AccelAmp      float64 // acceleration amplitude bound per sinusoid (m/s²)
	GyroAmp       float64 // angular velocity amplitude bound (rad/s)
	PressureAmp   float64 // independent Z-axis modulation amplitude (m/s²)
	NoiseAmp      float64 // bounded uniform noise added per axis
	MinFreq       float64 // sinusoid frequency range (Hz)
	MaxFreq       float64

	Gravity float64
}

// DefaultRandomConfig returns the stock smooth-random parameters.
func DefaultRandomConfig(seed int64) RandomConfig {
	return RandomConfig{
		Seed:          seed,
		SinusoidCount: 3,
		AccelAmp:      0.8,
		GyroAmp:       0.4,
		PressureAmp:   1.5,
		NoiseAmp:      0.05,
		MinFreq:       0.1,
		MaxFreq:       0.9,
		Gravity:       imu.StandardGravity,
	}
}

// Validate rejects configurations outside the supported envelope.
func (c RandomConfig) Validate() error {
	if c.SinusoidCount < 2 || c.SinusoidCount > 4 {
		return fmt.Errorf("sinusoid_count must be in [2,4], got %d", c.SinusoidCount)
	}
	if c.MinFreq <= 0 || c.MaxFreq <= c.MinFreq {
		return fmt.Errorf("frequency range must satisfy 0 < min < max, got [%v, %v]", c.MinFreq, c.MaxFreq)
	}
	if c.AccelAmp < 0 || c.GyroAmp < 0 || c.PressureAmp < 0 || c.NoiseAmp < 0 {
		return fmt.Errorf("amplitudes must be non-negative")
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %v", c.Gravity)
	}
	return nil
}

// sinusoid is one fixed component of an axis profile, chosen at mode
// start and held for the session.
type sinusoid struct {
	amp   float64
	freq  float64 // rad/s
	phase float64
}

func (s sinusoid) at(t float64) float64 {
	return s.amp * math.Sin(s.freq*t+s.phase)
}

// RandomGenerator sums a small bank of fixed sinusoids per axis plus
// bounded seeded noise, producing smooth, non-repeating but bounded
// motion. The Z acceleration axis carries an independently modulated
// pressure-like component. Two generators with the same config produce
// tolerance-equal sample streams.
type RandomGenerator struct {
	cfg RandomConfig
	rng *rand.Rand

	accel    [3][]sinusoid
	gyro     [3][]sinusoid
	pressure sinusoid
	wobble   [2]sinusoid // roll/pitch orientation wobble

	elapsed float64
}

// NewRandomGenerator creates a random generator, drawing the sinusoid
// banks once from the seeded source.
func NewRandomGenerator(cfg RandomConfig) (*RandomGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("random config: %w", err)
	}
	g := &RandomGenerator{cfg: cfg}
	g.init()
	return g, nil
}

// init draws the fixed sinusoid banks and rewinds the phase state.
// Called at construction and on Reset so a reset replays the session.
func (g *RandomGenerator) init() {
	g.rng = rand.New(rand.NewSource(g.cfg.Seed))
	g.elapsed = 0
	for axis := 0; axis < 3; axis++ {
		g.accel[axis] = g.drawBank(g.cfg.AccelAmp)
		g.gyro[axis] = g.drawBank(g.cfg.GyroAmp)
	}
	g.pressure = g.drawSinusoid(g.cfg.PressureAmp)
	g.wobble[0] = g.drawSinusoid(0.15)
	g.wobble[1] = g.drawSinusoid(0.15)
}

func (g *RandomGenerator) drawBank(amp float64) []sinusoid {
	bank := make([]sinusoid, g.cfg.SinusoidCount)
	for i := range bank {
		bank[i] = g.drawSinusoid(amp / float64(g.cfg.SinusoidCount))
	}
	return bank
}

func (g *RandomGenerator) drawSinusoid(amp float64) sinusoid {
	freqHz := g.cfg.MinFreq + g.rng.Float64()*(g.cfg.MaxFreq-g.cfg.MinFreq)
	return sinusoid{
		amp:   amp * (0.5 + 0.5*g.rng.Float64()),
		freq:  2 * math.Pi * freqHz,
		phase: g.rng.Float64() * 2 * math.Pi,
	}
}

// Mode reports ModeRandom.
func (g *RandomGenerator) Mode() Mode { return ModeRandom }

// Reset redraws the banks from the original seed and rewinds time, so a
// reset generator reproduces its first session exactly.
func (g *RandomGenerator) Reset() { g.init() }

func sumBank(bank []sinusoid, t float64) float64 {
	var v float64
	for _, s := range bank {
		v += s.at(t)
	}
	return v
}

// noise returns one bounded uniform noise value in [-NoiseAmp, NoiseAmp].
func (g *RandomGenerator) noise() float64 {
	return (g.rng.Float64()*2 - 1) * g.cfg.NoiseAmp
}

// NextSample advances by dt*speed and evaluates the sinusoid banks.
func (g *RandomGenerator) NextSample(dt, speed float64) (imu.SensorSample, error) {
	if err := checkStep(dt, speed); err != nil {
		return imu.SensorSample{}, err
	}
	g.elapsed += dt * speed
	t := g.elapsed

	motion := imu.Vec3{
		X: sumBank(g.accel[0], t) + g.noise(),
		Y: sumBank(g.accel[1], t) + g.noise(),
		// Z stands in for variable contact pressure, modulated
		// independently of the planar axes.
		Z: 0.3*sumBank(g.accel[2], t) + g.pressure.at(t) + g.noise(),
	}
	gyro := imu.Vec3{
		X: sumBank(g.gyro[0], t) + g.noise(),
		Y: sumBank(g.gyro[1], t) + g.noise(),
		Z: sumBank(g.gyro[2], t) + g.noise(),
	}

	// Gentle roll/pitch wobble keeps the orientation off identity so the
	// gravity compensation path is exercised continuously.
	roll := g.wobble[0].at(t)
	pitch := g.wobble[1].at(t)
	orientation := imu.FromAxisAngle(imu.Vec3{X: 1}, roll)
	orientation = mulQuat(orientation, imu.FromAxisAngle(imu.Vec3{Y: 1}, pitch))

	accel := motion.Add(gravityInSensorFrame(orientation, g.cfg.Gravity))
	mag := orientation.RotateInverse(earthField)

	return imu.NewSensorSample(g.cfg.StartTime+g.elapsed, accel, gyro, orientation, mag)
}

// mulQuat composes two rotations (q then p in the local frame).
func mulQuat(q, p imu.Quat) imu.Quat {
	return imu.Quat{
		W: q.W*p.W - q.X*p.X - q.Y*p.Y - q.Z*p.Z,
		X: q.W*p.X + q.X*p.W + q.Y*p.Z - q.Z*p.Y,
		Y: q.W*p.Y - q.X*p.Z + q.Y*p.W + q.Z*p.X,
		Z: q.W*p.Z + q.X*p.Y - q.Y*p.X + q.Z*p.W,
	}
}
