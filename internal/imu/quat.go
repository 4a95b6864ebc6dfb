package imu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// unitTolerance is the permitted deviation of a quaternion norm from 1.
// Samples decoded from JSON round-trip through decimal text, so exact
// equality is not achievable.
const unitTolerance = 1e-6

// Quat is a rotation quaternion in (x, y, z, w) component order to match
// the sample wire schema.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the identity rotation.
func Identity() Quat {
	return Quat{W: 1}
}

// FromAxisAngle builds a unit quaternion rotating by angle radians about
// the given axis. A zero axis yields the identity.
func FromAxisAngle(axis Vec3, angle float64) Quat {
	n := axis.Norm()
	if n == 0 {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// Norm returns the quaternion magnitude.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// IsUnit reports whether q is a unit quaternion within tolerance.
func (q Quat) IsUnit() bool {
	n := q.Norm()
	return isFinite(n) && math.Abs(n-1) < unitTolerance
}

// Normalised returns q scaled to unit length. A zero or non-finite
// quaternion is an error rather than a silent identity.
func (q Quat) Normalised() (Quat, error) {
	n := q.Norm()
	if !isFinite(n) || n == 0 {
		return Quat{}, fmt.Errorf("cannot normalise quaternion with norm %v", n)
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}, nil
}

func (q Quat) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Rotate applies q to v, taking a sensor-frame vector to the world frame.
func (q Quat) Rotate(v Vec3) Vec3 {
	r := quat.Mul(quat.Mul(q.number(), quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q.number()))
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateInverse applies the inverse of q to v, taking a world-frame
// vector into the sensor frame. For the unit quaternions used here the
// inverse is the conjugate.
func (q Quat) RotateInverse(v Vec3) Vec3 {
	r := quat.Mul(quat.Mul(quat.Conj(q.number()), quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), q.number())
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Euler returns the intrinsic roll, pitch and yaw angles (radians, ZYX
// convention) equivalent to q. Pitch is clamped at ±π/2 at the gimbal
// singularity.
func (q Quat) Euler() (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if sinp >= 1 {
		pitch = math.Pi / 2
	} else if sinp <= -1 {
		pitch = -math.Pi / 2
	} else {
		pitch = math.Asin(sinp)
	}

	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}
