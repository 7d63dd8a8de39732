package filter

import (
	"cvd-cam-go/internal/colorspace"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/lattice"
)

// Registry keys.
const (
	Original    = "Original"
	Deuteranope = "Deuteranope"
	Dark        = "Dark"
	Blue        = "Blue"
	Yellow      = "Yellow"
	DarkBright  = "Dark & Bright"
	YellowBlue  = "Yellow & Blue"
)

const (
	// redThreshold is the first 8-bit a value treated as red leaning.
	redThreshold = 133
	// redSaturation is where the correction reaches full strength.
	redSaturation = 164

	maxLightnessShift = 128
	maxChromaShift    = 31
)

// Func transforms one frame into a new frame of the same shape.
type Func func(frame.Frame) frame.Frame

// labAdjust rewrites one pixel given in Lab. x, y are the pixel coordinates.
type labAdjust func(x, y int, p colorspace.Lab8) colorspace.Lab8

// Bank returns the canonical filters in presentation order.
func Bank() []Entry {
	return []Entry{
		{Name: Original, Fn: identity},
		{Name: Deuteranope, Fn: simulateDeuteranope},
		{Name: Dark, Fn: labFilter(darken)},
		{Name: Blue, Fn: labFilter(towardBlue)},
		{Name: Yellow, Fn: labFilter(towardYellow)},
		{Name: DarkBright, Fn: labFilter(ditherLightness)},
		{Name: YellowBlue, Fn: labFilter(ditherChroma)},
	}
}

func identity(f frame.Frame) frame.Frame {
	return f
}

func simulateDeuteranope(f frame.Frame) frame.Frame {
	out := frame.NewLike(f)
	stride := f.Stride()
	frame.ForEachBand(f.Height, func(y0, y1 int) {
		for i := y0 * stride; i < y1*stride; i += 3 {
			r, g, b := deuteranopePixel(f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Order)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = r, g, b
		}
	})
	return out
}

// deuteranopePixel works on raw samples; the linear transform is applied to
// R, G, B so the order only decides which sample is which.
func deuteranopePixel(c0, c1, c2 uint8, order frame.ChannelOrder) (uint8, uint8, uint8) {
	r, g, b := c0, c1, c2
	if order == frame.BGR {
		r, b = c2, c0
	}
	l, _, s := colorspace.RGBToLMS(
		colorspace.Channel8ToLinear(r),
		colorspace.Channel8ToLinear(g),
		colorspace.Channel8ToLinear(b),
	)
	var m float64
	if s <= l {
		m = 0.82781*l + 0.17216*s
	} else {
		m = 0.81951*l + 0.18046*s
	}
	rl, gl, bl := colorspace.LMSToRGB(l, m, s)
	ro, gout, bo := colorspace.ToGamma(rl), colorspace.ToGamma(gl), colorspace.ToGamma(bl)
	if order == frame.BGR {
		return bo, gout, ro
	}
	return ro, gout, bo
}

func labFilter(adjust labAdjust) Func {
	return func(f frame.Frame) frame.Frame {
		lab := colorspace.ToLab(f)
		stride := f.Stride()
		frame.ForEachBand(f.Height, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				for x := 0; x < f.Width; x++ {
					i := y*stride + x*3
					lab.Set(i, adjust(x, y, lab.At(i)))
				}
			}
		})
		return colorspace.FromLab(lab, f.Order)
	}
}

// redRamp is 0 below the threshold, rises linearly with a and saturates at 1
// from redSaturation upward. Every corrective filter shares it, so values of a
// above redSaturation get the full correction in all of them.
func redRamp(a uint8) float64 {
	if !isRedLeaning(a) {
		return 0
	}
	return colorspace.Clamp(float64(int(a)-redThreshold)/(redSaturation-redThreshold), 0, 1)
}

func isRedLeaning(a uint8) bool {
	return a >= redThreshold
}

func shift(v uint8, x float64) uint8 {
	return colorspace.ClampUint8(float64(v) + x)
}

func darken(_, _ int, p colorspace.Lab8) colorspace.Lab8 {
	x := colorspace.Clamp(-maxLightnessShift*redRamp(p.A), -maxLightnessShift, 0)
	p.L = shift(p.L, x)
	return p
}

func towardBlue(_, _ int, p colorspace.Lab8) colorspace.Lab8 {
	x := colorspace.Clamp(-maxChromaShift*redRamp(p.A), -maxChromaShift, 0)
	p.B = shift(p.B, x)
	return p
}

func towardYellow(_, _ int, p colorspace.Lab8) colorspace.Lab8 {
	x := colorspace.Clamp(maxChromaShift*redRamp(p.A), 0, maxChromaShift)
	p.B = shift(p.B, x)
	return p
}

func ditherLightness(x, y int, p colorspace.Lab8) colorspace.Lab8 {
	p.L = shift(p.L, ditherAmount(x, y, p.A))
	return p
}

func ditherChroma(x, y int, p colorspace.Lab8) colorspace.Lab8 {
	p.B = shift(p.B, ditherAmount(x, y, p.A))
	return p
}

// ditherAmount is added on even lattice cells and subtracted on odd ones.
// The lattice is indexed by (row, column).
func ditherAmount(x, y int, a uint8) float64 {
	return lattice.Sign(y, x) * maxChromaShift * redRamp(a)
}
