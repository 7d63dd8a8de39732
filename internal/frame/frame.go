package frame

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFrame reports a frame whose geometry does not match its pixel buffer.
var ErrMalformedFrame = errors.New("malformed frame")

// MaxDimension bounds width and height so that the buffer size 3*W*H can
// never overflow an int.
const MaxDimension = 1 << 15

// ChannelOrder is the device order of the three samples of a pixel.
type ChannelOrder int

const (
	BGR ChannelOrder = iota
	RGB
)

func (o ChannelOrder) String() string {
	switch o {
	case BGR:
		return "bgr"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

func ParseChannelOrder(value string) (ChannelOrder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "bgr", "bgr24":
		return BGR, nil
	case "rgb", "rgb24":
		return RGB, nil
	default:
		return 0, fmt.Errorf("unsupported channel order %q", value)
	}
}

// Frame is a packed 8-bit, three channel image. Rows are stored top to
// bottom with a stride of 3*Width.
type Frame struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8
}

func New(width, height int, order ChannelOrder) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]uint8, width*height*3),
	}
}

// NewLike allocates a zeroed frame with the geometry of f.
func NewLike(f Frame) Frame {
	return Frame{
		Width:  f.Width,
		Height: f.Height,
		Order:  f.Order,
		Pix:    make([]uint8, len(f.Pix)),
	}
}

func (f Frame) Clone() Frame {
	out := f
	out.Pix = append([]uint8(nil), f.Pix...)
	return out
}

func (f Frame) Stride() int {
	return f.Width * 3
}

func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformedFrame, f.Width, f.Height)
	}
	if f.Width > MaxDimension || f.Height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d", ErrMalformedFrame, f.Width, f.Height, MaxDimension)
	}
	if f.Order != BGR && f.Order != RGB {
		return fmt.Errorf("%w: channel order %v", ErrMalformedFrame, f.Order)
	}
	if want := f.Width * f.Height * 3; len(f.Pix) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrMalformedFrame, len(f.Pix), f.Width, f.Height, want)
	}
	return nil
}

// SameShape reports whether f and other share width, height and channel order.
func (f Frame) SameShape(other Frame) bool {
	return f.Width == other.Width && f.Height == other.Height && f.Order == other.Order && len(f.Pix) == len(other.Pix)
}

// RGBAt returns the pixel at (x, y) in red, green, blue order regardless of
// the frame's channel order.
func (f Frame) RGBAt(x, y int) (r, g, b uint8) {
	i := y*f.Stride() + x*3
	return f.rgbAtOffset(i)
}

func (f Frame) SetRGB(x, y int, r, g, b uint8) {
	i := y*f.Stride() + x*3
	f.setRGBAtOffset(i, r, g, b)
}

func (f Frame) rgbAtOffset(i int) (r, g, b uint8) {
	if f.Order == BGR {
		return f.Pix[i+2], f.Pix[i+1], f.Pix[i]
	}
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

func (f Frame) setRGBAtOffset(i int, r, g, b uint8) {
	if f.Order == BGR {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
		return
	}
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Fill sets every pixel of f to the given colour.
func (f Frame) Fill(r, g, b uint8) {
	for i := 0; i < len(f.Pix); i += 3 {
		f.setRGBAtOffset(i, r, g, b)
	}
}
