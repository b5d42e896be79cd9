package interp

import (
	"fmt"
	"math"
)

// sample coordinates are clamped to this range before the int conversion
const maxCoord = 1 << 30

// Warp resamples img along field multiplied by scale. Output pixel (x,y) is
// the bilinear sample of img at (x+scale*dx, y+scale*dy), neighbours outside
// the image are mirrored back in (edge pixel repeated). The field must be
// finite, see MotionField.Validate.
func Warp(img *Frame, field *MotionField, scale float64) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidParameter)
	}

	if !finite(scale) {
		return nil, fmt.Errorf("%w: warp scale %v", ErrInvalidParameter, scale)
	}

	w, h := img.Width, img.Height
	if field == nil {
		return nil, fmt.Errorf("%w: no field for a %dx%d frame", ErrShapeMismatch, w, h)
	}

	// non finite vectors would sample undefined pixels
	if err := field.Validate(w, h); err != nil {
		return nil, err
	}

	if len(img.Data) != img.Size() {
		return nil, fmt.Errorf("%w: got %d bytes for a %dx%d frame", ErrShapeMismatch, len(img.Data), w, h)
	}

	out := &Frame{Width: w, Height: h, Data: make([]byte, len(img.Data))}
	for y := 0; y < h; y++ {
		row := field.Vectors[y*w : (y+1)*w]
		for x, v := range row {
			sx := float64(x) + scale*float64(v.DX)
			sy := float64(y) + scale*float64(v.DY)
			i := (y*w + x) * Channels
			sampleBilinear(img, sx, sy, out.Data[i:i+Channels])
		}
	}

	return out, nil
}

func sampleBilinear(img *Frame, sx, sy float64, dst []byte) {
	fx0 := math.Floor(sx)
	fy0 := math.Floor(sy)
	ax := sx - fx0
	ay := sy - fy0

	x0 := foldCoord(fx0)
	y0 := foldCoord(fy0)
	xa := reflectIndex(x0, img.Width)
	xb := reflectIndex(x0+1, img.Width)
	ya := reflectIndex(y0, img.Height)
	yb := reflectIndex(y0+1, img.Height)

	stride := img.Width * Channels
	p00 := img.Data[ya*stride+xa*Channels:]
	p10 := img.Data[ya*stride+xb*Channels:]
	p01 := img.Data[yb*stride+xa*Channels:]
	p11 := img.Data[yb*stride+xb*Channels:]

	w00 := (1 - ax) * (1 - ay)
	w10 := ax * (1 - ay)
	w01 := (1 - ax) * ay
	w11 := ax * ay

	for c := 0; c < Channels; c++ {
		v := w00*float64(p00[c]) + w10*float64(p10[c]) + w01*float64(p01[c]) + w11*float64(p11[c])
		dst[c] = clampSample(v)
	}
}

func foldCoord(v float64) int {
	if v > maxCoord {
		v = maxCoord
	} else if v < -maxCoord {
		v = -maxCoord
	}

	return int(v)
}

// reflectIndex maps i into [0,n) mirroring at both borders:
// fedcba|abcdefgh|hgfedcb
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}

	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}

	if i >= n {
		i = period - 1 - i
	}

	return i
}

func clampSample(v float64) byte {
	v = math.RoundToEven(v)
	if v <= 0 {
		return 0
	}

	if v >= 255 {
		return 255
	}

	return byte(v)
}
