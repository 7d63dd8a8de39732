package frame

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minBandRows keeps tiny frames on the calling goroutine.
const minBandRows = 16

// ForEachBand splits [0,height) into contiguous row bands and calls fn for
// each of them concurrently. It returns once every band is done. fn must only
// touch rows inside its own band.
func ForEachBand(height int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	bands := runtime.GOMAXPROCS(0)
	if max := height / minBandRows; bands > max {
		bands = max
	}
	if bands <= 1 {
		fn(0, height)
		return
	}
	step := (height + bands - 1) / bands
	var g errgroup.Group
	g.SetLimit(bands)
	for y0 := 0; y0 < height; y0 += step {
		y0 := y0
		y1 := y0 + step
		if y1 > height {
			y1 = height
		}
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}
