package interp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowFrame builds a 1 pixel high gray ramp, every channel holding values[x].
func rowFrame(t *testing.T, values ...byte) *Frame {
	t.Helper()
	data := make([]byte, 0, len(values)*Channels)
	for _, v := range values {
		data = append(data, v, v, v)
	}
	f, err := FrameFromBytes(len(values), 1, data)
	require.NoError(t, err)
	return f
}

func rowValues(f *Frame) []byte {
	out := make([]byte, f.Width*f.Height)
	for i := range out {
		out[i] = f.Data[i*Channels]
	}
	return out
}

func constantField(w, h int, v Vector) *MotionField {
	field := NewMotionField(w, h)
	for i := range field.Vectors {
		field.Vectors[i] = v
	}
	return field
}

func TestWarpZeroFieldIsIdentity(t *testing.T) {
	img := rowFrame(t, 10, 20, 30, 40)
	out, err := Warp(img, NewMotionField(4, 1), 0.75)
	require.NoError(t, err)
	assert.True(t, img.Equal(out))
}

func TestWarpZeroScaleIsIdentity(t *testing.T) {
	img := rowFrame(t, 10, 20, 30, 40)
	out, err := Warp(img, constantField(4, 1, Vector{DX: 3, DY: -2}), 0)
	require.NoError(t, err)
	assert.True(t, img.Equal(out))
}

func TestWarpReflectsAtBorders(t *testing.T) {
	img := rowFrame(t, 10, 20, 30, 40)
	field := constantField(4, 1, Vector{DX: 1})

	tests := []struct {
		name  string
		scale float64
		want  []byte
	}{
		{"forward", 1, []byte{20, 30, 40, 40}},
		{"backward", -1, []byte{10, 10, 20, 30}},
		{"half", 0.5, []byte{15, 25, 35, 40}},
		{"far", 5, []byte{30, 20, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Warp(img, field, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rowValues(out))
		})
	}
}

func TestWarpVertical(t *testing.T) {
	img, err := FrameFromBytes(1, 3, []byte{0, 0, 0, 100, 100, 100, 200, 200, 200})
	require.NoError(t, err)

	out, err := Warp(img, constantField(1, 3, Vector{DY: 1}), 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{100, 200, 200}, rowValues(out))
}

func TestWarpHugeDisplacementStaysInBounds(t *testing.T) {
	img := rowFrame(t, 1, 2, 3)
	out, err := Warp(img, constantField(3, 1, Vector{DX: 1e30}), 1)
	require.NoError(t, err)
	assert.Len(t, out.Data, img.Size())
}

func TestWarpRejectsBadInput(t *testing.T) {
	img := rowFrame(t, 1, 2, 3)

	_, err := Warp(img, NewMotionField(2, 1), 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Warp(img, nil, 1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Warp(img, NewMotionField(3, 1), math.NaN())
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Warp(img, NewMotionField(3, 1), math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestWarpRejectsNonFiniteVectors(t *testing.T) {
	img := rowFrame(t, 10, 20, 30)

	for _, v := range []Vector{
		{DX: float32(math.NaN())},
		{DY: float32(math.Inf(-1))},
	} {
		field := NewMotionField(3, 1)
		field.Set(1, 0, v)

		out, err := Warp(img, field, 0.5)
		assert.ErrorIs(t, err, ErrEstimationFailure)
		assert.Nil(t, out)
	}
}

func TestReflectIndex(t *testing.T) {
	// fedcba|abcdefgh|hgfedcb
	n := 8
	assert.Equal(t, 0, reflectIndex(-1, n))
	assert.Equal(t, 5, reflectIndex(-6, n))
	assert.Equal(t, 7, reflectIndex(8, n))
	assert.Equal(t, 1, reflectIndex(14, n))
	assert.Equal(t, 0, reflectIndex(16, n))
	assert.Equal(t, 0, reflectIndex(-5, 1))
}

func TestMotionFieldValidate(t *testing.T) {
	var missing *MotionField
	assert.ErrorIs(t, missing.Validate(2, 2), ErrEstimationFailure)

	assert.ErrorIs(t, NewMotionField(2, 3).Validate(2, 2), ErrShapeMismatch)

	field := NewMotionField(2, 2)
	require.NoError(t, field.Validate(2, 2))

	field.Set(1, 1, Vector{DX: float32(math.NaN())})
	assert.ErrorIs(t, field.Validate(2, 2), ErrEstimationFailure)

	field.Set(1, 1, Vector{DY: float32(math.Inf(-1))})
	assert.ErrorIs(t, field.Validate(2, 2), ErrEstimationFailure)
}
