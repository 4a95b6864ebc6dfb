// Package imu defines the fixed-shape sample and trajectory types shared
// by the signal generator and the movement tracker, together with the
// small amount of vector and quaternion arithmetic they need.
package imu

import (
	"fmt"
	"math"
)

// StandardGravity is the canonical gravity magnitude in m/s².
const StandardGravity = 9.80665

// Vec3 is a three-axis vector. JSON field names match the sample wire
// schema ({"x":..,"y":..,"z":..}).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsFinite reports whether every component is finite (not NaN or ±Inf).
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Vec2 is a two-axis vector used for the projected trajectory.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SensorSample is one synthetic inertial reading. Timestamps are unix
// seconds and strictly increase sample-to-sample within a session; the
// orientation is a unit quaternion (sensor frame relative to world).
type SensorSample struct {
	Timestamp          float64 `json:"timestamp"`
	LinearAcceleration Vec3    `json:"linear_acceleration"`
	AngularVelocity    Vec3    `json:"angular_velocity"`
	Orientation        Quat    `json:"orientation"`
	MagneticField      Vec3    `json:"magnetic_field"`
}

// NewSensorSample builds a validated sample. The orientation is normalised
// here so downstream consumers can rely on the unit-quaternion invariant
// without re-checking it at point of use.
func NewSensorSample(timestamp float64, accel, gyro Vec3, orientation Quat, mag Vec3) (SensorSample, error) {
	if !isFinite(timestamp) {
		return SensorSample{}, fmt.Errorf("timestamp is not finite: %v", timestamp)
	}
	if !accel.IsFinite() || !gyro.IsFinite() || !mag.IsFinite() {
		return SensorSample{}, fmt.Errorf("sample at t=%v has non-finite vector components", timestamp)
	}
	q, err := orientation.Normalised()
	if err != nil {
		return SensorSample{}, fmt.Errorf("sample at t=%v: %w", timestamp, err)
	}
	return SensorSample{
		Timestamp:          timestamp,
		LinearAcceleration: accel,
		AngularVelocity:    gyro,
		Orientation:        q,
		MagneticField:      mag,
	}, nil
}

// Validate checks the invariants on a sample decoded from an external
// source (replay files, HTTP bodies). Returns nil for a well-formed sample.
func (s SensorSample) Validate() error {
	if !isFinite(s.Timestamp) {
		return fmt.Errorf("timestamp is not finite: %v", s.Timestamp)
	}
	if !s.LinearAcceleration.IsFinite() {
		return fmt.Errorf("linear_acceleration has non-finite components")
	}
	if !s.AngularVelocity.IsFinite() {
		return fmt.Errorf("angular_velocity has non-finite components")
	}
	if !s.MagneticField.IsFinite() {
		return fmt.Errorf("magnetic_field has non-finite components")
	}
	if !s.Orientation.IsUnit() {
		return fmt.Errorf("orientation is not a unit quaternion: %+v", s.Orientation)
	}
	return nil
}

// TrajectoryPoint is one reconstructed point of the 2D trajectory,
// produced by the tracker from exactly one sensor sample.
type TrajectoryPoint struct {
	Timestamp          float64 `json:"timestamp"`
	Position           Vec2    `json:"position"`
	Velocity           Vec2    `json:"velocity"`
	Acceleration       Vec3    `json:"acceleration"`
	Orientation        Quat    `json:"orientation"`
	CumulativeDistance float64 `json:"cumulative_distance"`
	VelocityMagnitude  float64 `json:"velocity_magnitude"`
}
