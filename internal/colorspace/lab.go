package colorspace

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"cvd-cam-go/internal/frame"
)

// Lab8 is a CIE Lab (D65) colour in the 8-bit encoding used by capture
// pipelines: L scaled from [0,100] to [0,255], a and b offset by 128.
type Lab8 struct {
	L uint8
	A uint8
	B uint8
}

// LabFrame holds one Lab8 triple per pixel, packed L, a, b.
type LabFrame struct {
	Width  int
	Height int
	Pix    []uint8
}

func (f LabFrame) At(i int) Lab8 {
	return Lab8{L: f.Pix[i], A: f.Pix[i+1], B: f.Pix[i+2]}
}

func (f LabFrame) Set(i int, p Lab8) {
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = p.L, p.A, p.B
}

func RGBToLab(r, g, b uint8) Lab8 {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	l, a, bb := c.Lab()
	return Lab8{
		L: roundUint8(l * 255),
		A: roundUint8(a*100 + 128),
		B: roundUint8(bb*100 + 128),
	}
}

func LabToRGB(p Lab8) (r, g, b uint8) {
	c := colorful.Lab(
		float64(p.L)/255,
		(float64(p.A)-128)/100,
		(float64(p.B)-128)/100,
	)
	return c.Clamped().RGB255()
}

// ToLab converts every pixel of f to Lab8.
func ToLab(f frame.Frame) LabFrame {
	return toLab(f)
}

// FromLab converts lab back to device colour in the given channel order.
func FromLab(lab LabFrame, order frame.ChannelOrder) frame.Frame {
	return fromLab(lab, order)
}

func toLabPortable(f frame.Frame) LabFrame {
	out := LabFrame{Width: f.Width, Height: f.Height, Pix: make([]uint8, len(f.Pix))}
	stride := f.Stride()
	frame.ForEachBand(f.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < f.Width; x++ {
				r, g, b := f.RGBAt(x, y)
				out.Set(y*stride+x*3, RGBToLab(r, g, b))
			}
		}
	})
	return out
}

func fromLabPortable(lab LabFrame, order frame.ChannelOrder) frame.Frame {
	out := frame.New(lab.Width, lab.Height, order)
	stride := out.Stride()
	frame.ForEachBand(lab.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < lab.Width; x++ {
				r, g, b := LabToRGB(lab.At(y*stride + x*3))
				out.SetRGB(x, y, r, g, b)
			}
		}
	})
	return out
}

func roundUint8(v float64) uint8 {
	return ClampUint8(math.Round(v))
}
