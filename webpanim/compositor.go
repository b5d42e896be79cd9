package webpanim

import (
	"image"
	"image/color"
	"io"

	"golang.org/x/image/draw"
)

// Compositor replays an animation. Every call to Next returns the full
// canvas as shown after the next frame.
type Compositor struct {
	anim   *Animation
	canvas *image.RGBA
	next   int
}

func NewCompositor(anim *Animation) *Compositor {
	return &Compositor{
		anim:   anim,
		canvas: image.NewRGBA(image.Rect(0, 0, anim.Width, anim.Height)),
	}
}

// Len is the number of frames of the animation
func (c *Compositor) Len() int {
	return len(c.anim.Frames)
}

// Next returns a copy of the canvas, io.EOF once every frame was shown.
func (c *Compositor) Next() (*image.RGBA, error) {
	if c.next >= len(c.anim.Frames) {
		return nil, io.EOF
	}

	if c.next > 0 {
		if prev := &c.anim.Frames[c.next-1]; prev.Dispose {
			draw.Draw(c.canvas, prev.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		}
	}

	frame := &c.anim.Frames[c.next]
	img, err := frame.Decode()
	if err != nil {
		return nil, err
	}

	op := draw.Src
	if frame.Blend {
		op = draw.Over
	}

	draw.Draw(c.canvas, frame.Bounds(), img, img.Bounds().Min, op)
	c.next++

	out := image.NewRGBA(c.canvas.Rect)
	copy(out.Pix, c.canvas.Pix)
	return out, nil
}
