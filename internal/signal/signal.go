// Package signal synthesises inertial sensor samples. Three generator
// variants sit behind one interface: a demo pattern state machine, a
// seeded smooth-random source, and replay of a recorded sample sequence.
// Each variant owns its phase state; nothing is global, and only an
// explicit Reset clears progress.
package signal

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motion.trace/internal/imu"
)

// Mode identifies a generator variant.
type Mode string

const (
	ModeDemo   Mode = "demo"
	ModeRandom Mode = "random"
	ModeReplay Mode = "replay"
)

// ErrReplayComplete is returned by a replay generator once every recorded
// sample has been emitted. It signals normal completion, not a failure.
var ErrReplayComplete = errors.New("replay complete")

// Generator produces one timestamp-ordered sensor sample per call.
//
// dt is the caller's simulated time step and speed is an independent
// multiplier; both must be honoured so demo/random phase and replay
// timing advance identically regardless of how the caller scales time.
type Generator interface {
	// NextSample advances the generator by dt*speed simulated seconds
	// and returns the sample for the new instant. dt must be positive.
	NextSample(dt, speed float64) (imu.SensorSample, error)

	// Reset clears all phase and progress state back to construction.
	Reset()

	// Mode reports which variant this generator is.
	Mode() Mode
}

// checkStep validates the shared NextSample preconditions.
func checkStep(dt, speed float64) error {
	if dt <= 0 {
		return fmt.Errorf("dt must be positive, got %v", dt)
	}
	if speed <= 0 {
		return fmt.Errorf("speed multiplier must be positive, got %v", speed)
	}
	return nil
}

// gravityInSensorFrame returns the gravity vector as the sensor at
// orientation q would measure it. Generated samples add this to the
// motion acceleration so that the tracker's compensation step recovers
// motion-only acceleration exactly.
func gravityInSensorFrame(q imu.Quat, g float64) imu.Vec3 {
	return q.RotateInverse(imu.Vec3{Z: g})
}
