package imu

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSensorSampleNormalisesOrientation(t *testing.T) {
	s, err := NewSensorSample(1.5, Vec3{0, 0, StandardGravity}, Vec3{}, Quat{X: 0, Y: 0, Z: 0, W: 2}, Vec3{})
	require.NoError(t, err)
	assert.True(t, s.Orientation.IsUnit(), "orientation should be normalised at construction")
	assert.InDelta(t, 1.0, s.Orientation.W, 1e-12)
}

func TestNewSensorSampleRejectsDegenerateInputs(t *testing.T) {
	cases := []struct {
		name        string
		timestamp   float64
		accel       Vec3
		orientation Quat
	}{
		{"nan timestamp", math.NaN(), Vec3{}, Identity()},
		{"inf accel", 1, Vec3{X: math.Inf(1)}, Identity()},
		{"zero quaternion", 1, Vec3{}, Quat{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSensorSample(tc.timestamp, tc.accel, Vec3{}, tc.orientation, Vec3{})
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsNonUnitOrientation(t *testing.T) {
	s := SensorSample{Timestamp: 1, Orientation: Quat{W: 0.5}}
	assert.Error(t, s.Validate())

	s.Orientation = Identity()
	assert.NoError(t, s.Validate())
}

func TestQuatRotateIdentity(t *testing.T) {
	v := Vec3{1.2, -3.4, 5.6}
	got := Identity().Rotate(v)
	if diff := cmp.Diff(v, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("identity rotation changed vector (-want +got):\n%s", diff)
	}
}

func TestQuatRotateAboutZ(t *testing.T) {
	// 90° about Z takes +X to +Y.
	q := FromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	got := q.Rotate(Vec3{X: 1})
	assert.InDelta(t, 0, got.X, 1e-12)
	assert.InDelta(t, 1, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)
}

func TestRotateInverseRoundTrip(t *testing.T) {
	q := FromAxisAngle(Vec3{X: 0.3, Y: -0.8, Z: 0.5}, 1.1)
	v := Vec3{0.7, 2.2, -1.4}
	back := q.RotateInverse(q.Rotate(v))
	if diff := cmp.Diff(v, back, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("rotate/inverse round trip drifted (-want +got):\n%s", diff)
	}
}

func TestEulerFromAxisRotations(t *testing.T) {
	roll, pitch, yaw := FromAxisAngle(Vec3{X: 1}, 0.4).Euler()
	assert.InDelta(t, 0.4, roll, 1e-12)
	assert.InDelta(t, 0, pitch, 1e-12)
	assert.InDelta(t, 0, yaw, 1e-12)

	_, pitch, _ = FromAxisAngle(Vec3{Y: 1}, -0.25).Euler()
	assert.InDelta(t, -0.25, pitch, 1e-12)

	_, _, yaw = FromAxisAngle(Vec3{Z: 1}, 1.3).Euler()
	assert.InDelta(t, 1.3, yaw, 1e-12)
}

func TestSampleWireSchema(t *testing.T) {
	s, err := NewSensorSample(1700000000.25,
		Vec3{0.1, 0.2, 9.9}, Vec3{0.01, 0.02, 0.03}, Identity(), Vec3{22, -4, 48})
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"timestamp", "linear_acceleration", "angular_velocity", "orientation", "magnetic_field"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("wire schema missing key %q", key)
		}
	}

	var back SensorSample
	require.NoError(t, json.Unmarshal(data, &back))
	assert.NoError(t, back.Validate())
	assert.Equal(t, s.Timestamp, back.Timestamp)
}

func TestVecHelpers(t *testing.T) {
	assert.InDelta(t, 5, Vec2{3, 4}.Norm(), 1e-12)
	assert.Equal(t, Vec3{2, 4, 6}, Vec3{1, 2, 3}.Scale(2))
	assert.Equal(t, Vec2{1, 1}, Vec2{3, 2}.Sub(Vec2{2, 1}))
	assert.False(t, Vec3{X: math.NaN()}.IsFinite())
}
