package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvd-cam-go/internal/colorspace"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/lattice"
)

func TestRedThresholdBoundary(t *testing.T) {
	assert.False(t, isRedLeaning(132))
	assert.True(t, isRedLeaning(133))

	below := colorspace.Lab8{L: 100, A: 132, B: 128}
	assert.Equal(t, below, darken(0, 0, below))
	assert.Equal(t, below, towardBlue(0, 0, below))
	assert.Equal(t, below, towardYellow(0, 0, below))
	assert.Equal(t, below, ditherLightness(0, 0, below))
	assert.Equal(t, below, ditherChroma(0, 0, below))

	// One step past the threshold moves every corrective filter.
	above := colorspace.Lab8{L: 100, A: 134, B: 128}
	assert.Less(t, darken(0, 0, above).L, above.L)
	assert.Less(t, towardBlue(0, 0, above).B, above.B)
	assert.Greater(t, towardYellow(0, 0, above).B, above.B)
}

func TestRedRamp(t *testing.T) {
	assert.Equal(t, 0.0, redRamp(0))
	assert.Equal(t, 0.0, redRamp(132))
	assert.Equal(t, 0.0, redRamp(133))
	assert.InDelta(t, 7.0/31, redRamp(140), 1e-12)
	assert.Equal(t, 1.0, redRamp(164))
	assert.Equal(t, 1.0, redRamp(165))
	assert.Equal(t, 1.0, redRamp(255))
}

func TestDarkenScenario(t *testing.T) {
	// x = -128*7/31 ≈ -28.9, truncated store-back.
	got := darken(0, 0, colorspace.Lab8{L: 100, A: 140, B: 90})
	assert.Equal(t, colorspace.Lab8{L: 71, A: 140, B: 90}, got)
}

func TestSaturation(t *testing.T) {
	for _, a := range []uint8{164, 165, 220} {
		p := colorspace.Lab8{L: 200, A: a, B: 128}
		assert.Equal(t, uint8(72), darken(0, 0, p).L, "a=%d", a)
		assert.Equal(t, uint8(97), towardBlue(0, 0, p).B, "a=%d", a)
		assert.Equal(t, uint8(159), towardYellow(0, 0, p).B, "a=%d", a)

		assert.Equal(t, uint8(231), ditherLightness(0, 0, p).L, "a=%d", a)
		assert.Equal(t, uint8(169), ditherLightness(0, 6, p).L, "a=%d", a)
		assert.Equal(t, uint8(159), ditherChroma(0, 0, p).B, "a=%d", a)
		assert.Equal(t, uint8(97), ditherChroma(6, 0, p).B, "a=%d", a)
	}
}

func TestShiftClamps(t *testing.T) {
	assert.Equal(t, uint8(0), darken(0, 0, colorspace.Lab8{L: 20, A: 200, B: 128}).L)
	assert.Equal(t, uint8(255), ditherLightness(0, 0, colorspace.Lab8{L: 250, A: 200, B: 128}).L)
	assert.Equal(t, uint8(0), ditherChroma(6, 0, colorspace.Lab8{L: 100, A: 200, B: 10}).B)
}

func TestDitherSignFollowsLattice(t *testing.T) {
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			amount := ditherAmount(x, y, 150)
			if lattice.IsEven(y, x) {
				assert.Greater(t, amount, 0.0, "(%d,%d)", x, y)
			} else {
				assert.Less(t, amount, 0.0, "(%d,%d)", x, y)
			}
			assert.InDelta(t, 31*17.0/31, abs(amount), 1e-9)
		}
	}
}

func TestDitheredFrameAlternates(t *testing.T) {
	src := frame.New(24, 24, frame.BGR)
	src.Fill(180, 60, 60)
	in := colorspace.RGBToLab(180, 60, 60)
	require.GreaterOrEqual(t, int(in.A), redSaturation)

	for _, fn := range []Func{labFilter(ditherLightness), labFilter(ditherChroma)} {
		out := colorspace.ToLab(fn(src))
		var even, odd []colorspace.Lab8
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				p := out.At(y*src.Stride() + x*3)
				if lattice.IsEven(y, x) {
					even = append(even, p)
				} else {
					odd = append(odd, p)
				}
			}
		}
		require.NotEmpty(t, even)
		require.NotEmpty(t, odd)
		for _, p := range even {
			assert.Equal(t, even[0], p)
		}
		for _, p := range odd {
			assert.Equal(t, odd[0], p)
		}
		assert.NotEqual(t, even[0], odd[0])

		// Same pixel one full period away.
		for y := 0; y < 12; y++ {
			for x := 0; x < 12; x++ {
				assert.Equal(t, out.At(y*src.Stride()+x*3), out.At((y+12)*src.Stride()+(x+12)*3))
			}
		}
	}
}

func TestDitheredLightnessDirection(t *testing.T) {
	src := frame.New(12, 12, frame.RGB)
	src.Fill(180, 60, 60)
	in := colorspace.RGBToLab(180, 60, 60)

	out := colorspace.ToLab(labFilter(ditherLightness)(src))
	brighter := out.At(0)
	darker := out.At(6 * 3)
	assert.Greater(t, int(brighter.L), int(in.L)+20)
	assert.Less(t, int(darker.L), int(in.L)-20)
}

func TestDeuteranopeGrayIsStable(t *testing.T) {
	for v := 0; v <= 255; v++ {
		g := uint8(v)
		r, gg, b := deuteranopePixel(g, g, g, frame.BGR)
		assert.InDelta(t, v, int(r), 1, "v=%d", v)
		assert.InDelta(t, v, int(gg), 1, "v=%d", v)
		assert.InDelta(t, v, int(b), 1, "v=%d", v)
	}
}

func TestDeuteranopeMergesRedAndGreen(t *testing.T) {
	red := frame.New(1, 1, frame.RGB)
	red.SetRGB(0, 0, 200, 40, 40)
	green := frame.New(1, 1, frame.RGB)
	green.SetRGB(0, 0, 40, 200, 40)

	rr, rg, _ := simulateDeuteranope(red).RGBAt(0, 0)
	gr, gg, _ := simulateDeuteranope(green).RGBAt(0, 0)

	// Red and green pixels lose most of their red-green contrast.
	assert.Less(t, absInt(int(rr)-int(rg)), 200-40)
	assert.Less(t, absInt(int(gr)-int(gg)), 200-40)
}

func TestDeuteranopeChannelOrder(t *testing.T) {
	bgr := frame.New(1, 1, frame.BGR)
	bgr.SetRGB(0, 0, 210, 90, 30)
	rgb := frame.New(1, 1, frame.RGB)
	rgb.SetRGB(0, 0, 210, 90, 30)

	r1, g1, b1 := simulateDeuteranope(bgr).RGBAt(0, 0)
	r2, g2, b2 := simulateDeuteranope(rgb).RGBAt(0, 0)
	assert.Equal(t, []uint8{r1, g1, b1}, []uint8{r2, g2, b2})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
