package interp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Strategy synthesizes the frames between two consecutive originals.
// Prepare is called once per pair, the returned Pair is then asked for
// every intermediate instant of that pair in increasing order.
type Strategy interface {
	Name() string
	Prepare(ctx context.Context, prev, next *Frame) (Pair, error)
}

type Pair interface {
	// Synthesize returns the frame at t, 0 being prev and 1 being next.
	Synthesize(t float64) (*Frame, error)
	// Degraded reports why the pair fell back to a cheaper method, nil otherwise.
	Degraded() error
}

// Synthesize is the one shot form of Prepare followed by Pair.Synthesize.
func Synthesize(ctx context.Context, s Strategy, prev, next *Frame, t float64) (*Frame, error) {
	pair, err := s.Prepare(ctx, prev, next)
	if err != nil {
		return nil, err
	}

	return pair.Synthesize(t)
}

// LinearBlend cross-dissolves the two frames, it knows nothing about motion.
type LinearBlend struct{}

func (LinearBlend) Name() string { return string(ModeBlend) }

func (LinearBlend) Prepare(_ context.Context, prev, next *Frame) (Pair, error) {
	if err := checkShape(prev, next); err != nil {
		return nil, err
	}

	return &blendPair{prev: prev, next: next}, nil
}

type blendPair struct {
	prev     *Frame
	next     *Frame
	degraded error
}

func (p *blendPair) Synthesize(t float64) (*Frame, error) {
	return Blend(p.prev, p.next, t)
}

func (p *blendPair) Degraded() error {
	return p.degraded
}

// MotionCompensated estimates one prev->next field per pair, warps prev
// forward by t and next backward by t-1 along that same field, then blends.
// Reusing the forward field for the backward warp only holds for small,
// locally linear motion.
type MotionCompensated struct {
	Estimator MotionEstimator
	Params    FlowParams
}

func NewMotionCompensated(estimator MotionEstimator, params FlowParams) (*MotionCompensated, error) {
	if estimator == nil {
		return nil, fmt.Errorf("%w: motion compensation needs an estimator", ErrInvalidParameter)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &MotionCompensated{Estimator: estimator, Params: params}, nil
}

func (m *MotionCompensated) Name() string { return string(ModeFlow) }

func (m *MotionCompensated) Prepare(ctx context.Context, prev, next *Frame) (Pair, error) {
	if err := checkShape(prev, next); err != nil {
		return nil, err
	}

	flow, err := m.Estimator.Estimate(ctx, prev.Gray(), next.Gray(), m.Params)
	if err == nil {
		err = flow.Validate(prev.Width, prev.Height)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if !errors.Is(err, ErrEstimationFailure) {
			err = fmt.Errorf("%w: %w", ErrEstimationFailure, err)
		}

		return &blendPair{
			prev:     prev,
			next:     next,
			degraded: fmt.Errorf("%w: falling back to linear blend: %w", ErrDegradedQuality, err),
		}, nil
	}

	return &flowPair{prev: prev, next: next, flow: flow}, nil
}

type flowPair struct {
	prev *Frame
	next *Frame
	flow *MotionField
}

func (p *flowPair) Synthesize(t float64) (*Frame, error) {
	warpedPrev, err := Warp(p.prev, p.flow, t)
	if err != nil {
		return nil, fmt.Errorf("warping previous frame: %w", err)
	}

	warpedNext, err := Warp(p.next, p.flow, t-1)
	if err != nil {
		return nil, fmt.Errorf("warping next frame: %w", err)
	}

	return Blend(warpedPrev, warpedNext, t)
}

func (p *flowPair) Degraded() error {
	return nil
}

type Mode string

const (
	ModeBlend Mode = "blend"
	ModeFlow  Mode = "flow"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blend", "linear":
		return ModeBlend, nil
	case "flow", "motion":
		return ModeFlow, nil
	}

	return "", fmt.Errorf("%w: unknown interpolation mode %q", ErrInvalidParameter, s)
}

// NewStrategy builds the strategy for mode. estimator is only required for ModeFlow.
func NewStrategy(mode Mode, estimator MotionEstimator, params FlowParams) (Strategy, error) {
	switch mode {
	case ModeBlend:
		return LinearBlend{}, nil
	case ModeFlow:
		return NewMotionCompensated(estimator, params)
	}

	return nil, fmt.Errorf("%w: unknown interpolation mode %q", ErrInvalidParameter, mode)
}
