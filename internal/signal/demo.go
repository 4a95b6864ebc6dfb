package signal

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.trace/internal/imu"
)

// Pattern names for the demo state machine, in cycle order.
const (
	PatternLine        = "line"
	PatternCircle      = "circle"
	PatternFigureEight = "figure-eight"
	PatternStipple     = "stipple"
)

// DemoConfig holds the closed-form pattern parameters for the demo
// generator. Durations are simulated seconds; accelerations are m/s².
type DemoConfig struct {
	StartTime float64 // timestamp of the first sample (unix seconds)

	LineDuration        float64 // straight push-pull stroke
	CircleDuration      float64 // constant-magnitude centripetal loop
	FigureEightDuration float64 // lemniscate sweep
	StippleDuration     float64 // rapid contact/lift bursts

	LineAccel     float64 // peak acceleration of the line stroke
	CircleAccel   float64 // centripetal acceleration magnitude
	EightAccel    float64 // figure-eight acceleration scale
	StippleAccel  float64 // contact burst magnitude (Z axis)
	StipplePeriod float64 // one contact+lift duty cycle
	StippleDuty   float64 // fraction of the period in contact [0,1]

	Gravity float64 // gravity magnitude folded into raw samples
}

// DefaultDemoConfig returns the stock demo pattern parameters.
func DefaultDemoConfig() DemoConfig {
	return DemoConfig{
		LineDuration:        3.0,
		CircleDuration:      4.0,
		FigureEightDuration: 6.0,
		StippleDuration:     3.0,
		LineAccel:           1.2,
		CircleAccel:         1.5,
		EightAccel:          0.9,
		StippleAccel:        4.0,
		StipplePeriod:       0.5,
		StippleDuty:         0.3,
		Gravity:             imu.StandardGravity,
	}
}

// Validate rejects configurations the pattern machine cannot run with.
func (c DemoConfig) Validate() error {
	for name, d := range map[string]float64{
		"line_duration":         c.LineDuration,
		"circle_duration":       c.CircleDuration,
		"figure_eight_duration": c.FigureEightDuration,
		"stipple_duration":      c.StippleDuration,
		"stipple_period":        c.StipplePeriod,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.StippleDuty <= 0 || c.StippleDuty >= 1 {
		return fmt.Errorf("stipple_duty must be in (0,1), got %v", c.StippleDuty)
	}
	if c.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %v", c.Gravity)
	}
	return nil
}

// DemoGenerator cycles through named motion patterns, selecting each by
// elapsed simulated time crossing fixed thresholds. All profiles are
// closed-form in the elapsed time within the pattern, so two runs with
// the same config and time base are bit-for-bit identical.
type DemoGenerator struct {
	cfg     DemoConfig
	elapsed float64
}

// NewDemoGenerator creates a demo generator, rejecting invalid config.
func NewDemoGenerator(cfg DemoConfig) (*DemoGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("demo config: %w", err)
	}
	return &DemoGenerator{cfg: cfg}, nil
}

// Mode reports ModeDemo.
func (g *DemoGenerator) Mode() Mode { return ModeDemo }

// Reset clears the elapsed-time phase state.
func (g *DemoGenerator) Reset() { g.elapsed = 0 }

// cycleLength is the total duration of one full pattern cycle.
func (g *DemoGenerator) cycleLength() float64 {
	return g.cfg.LineDuration + g.cfg.CircleDuration + g.cfg.FigureEightDuration + g.cfg.StippleDuration
}

// Pattern returns the pattern active at the current elapsed time.
func (g *DemoGenerator) Pattern() string {
	pattern, _ := g.patternAt(g.elapsed)
	return pattern
}

// patternAt maps an elapsed time onto (pattern name, time within pattern).
func (g *DemoGenerator) patternAt(elapsed float64) (string, float64) {
	t := math.Mod(elapsed, g.cycleLength())
	if t < g.cfg.LineDuration {
		return PatternLine, t
	}
	t -= g.cfg.LineDuration
	if t < g.cfg.CircleDuration {
		return PatternCircle, t
	}
	t -= g.cfg.CircleDuration
	if t < g.cfg.FigureEightDuration {
		return PatternFigureEight, t
	}
	t -= g.cfg.FigureEightDuration
	return PatternStipple, t
}

// NextSample advances simulated time by dt*speed and evaluates the
// active pattern's closed-form profile at the new instant.
func (g *DemoGenerator) NextSample(dt, speed float64) (imu.SensorSample, error) {
	if err := checkStep(dt, speed); err != nil {
		return imu.SensorSample{}, err
	}
	g.elapsed += dt * speed

	pattern, pt := g.patternAt(g.elapsed)

	var motion imu.Vec3
	var gyro imu.Vec3
	orientation := imu.Identity()

	switch pattern {
	case PatternLine:
		// Push out and pull back along X over one stroke.
		omega := 2 * math.Pi / g.cfg.LineDuration
		motion = imu.Vec3{X: g.cfg.LineAccel * math.Cos(omega*pt)}

	case PatternCircle:
		// Constant-magnitude centripetal acceleration rotating with the
		// angular phase; the tool yaws with the path tangent.
		omega := 2 * math.Pi / g.cfg.CircleDuration
		phase := omega * pt
		motion = imu.Vec3{
			X: -g.cfg.CircleAccel * math.Cos(phase),
			Y: -g.cfg.CircleAccel * math.Sin(phase),
		}
		gyro = imu.Vec3{Z: omega}
		orientation = imu.FromAxisAngle(imu.Vec3{Z: 1}, phase)

	case PatternFigureEight:
		// Lemniscate x=sin(2ωt), y=sin(ωt); acceleration is the second
		// derivative scaled to EightAccel.
		omega := 2 * math.Pi / g.cfg.FigureEightDuration
		motion = imu.Vec3{
			X: -4 * g.cfg.EightAccel * math.Sin(2*omega*pt),
			Y: -g.cfg.EightAccel * math.Sin(omega*pt),
		}
		gyro = imu.Vec3{Z: omega * math.Cos(omega*pt)}

	case PatternStipple:
		// Fixed duty cycle: a Z "contact" burst then a near-zero lift.
		phase := math.Mod(pt, g.cfg.StipplePeriod) / g.cfg.StipplePeriod
		if phase < g.cfg.StippleDuty {
			motion = imu.Vec3{Z: g.cfg.StippleAccel}
		} else {
			motion = imu.Vec3{Z: -0.05 * g.cfg.StippleAccel}
		}
	}

	accel := motion.Add(gravityInSensorFrame(orientation, g.cfg.Gravity))
	mag := orientation.RotateInverse(earthField)

	return imu.NewSensorSample(g.cfg.StartTime+g.elapsed, accel, gyro, orientation, mag)
}

// earthField is a nominal geomagnetic field (µT, world frame) carried
// through samples unmodified by the tracking math.
var earthField = imu.Vec3{X: 22.0, Y: 0.5, Z: -43.0}
