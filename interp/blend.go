package interp

import "fmt"

// Blend returns (1-t)*a + t*b per sample, rounded and clamped.
// t outside [0,1] extrapolates.
func Blend(a, b *Frame, t float64) (*Frame, error) {
	if !finite(t) {
		return nil, fmt.Errorf("%w: blend weight %v", ErrInvalidParameter, t)
	}

	if err := checkShape(a, b); err != nil {
		return nil, err
	}

	out := &Frame{Width: a.Width, Height: a.Height, Data: make([]byte, len(a.Data))}
	wa := 1 - t
	for i, va := range a.Data {
		out.Data[i] = clampSample(wa*float64(va) + t*float64(b.Data[i]))
	}

	return out, nil
}
