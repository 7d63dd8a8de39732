// Package simulator produces synthetic capture frames for running without a
// camera.
package simulator

import (
	"context"
	"time"

	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/types"
)

// Stream emits BGR test-pattern frames at fps until ctx is cancelled.
func Stream(ctx context.Context, width, height int, fps float64) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)

		if fps <= 0 {
			fps = 15
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		base := Pattern(width, height)
		frameID := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				img := base.Clone()
				drawBar(img, frameID)
				msg := types.RawMessage{
					Type: "frame",
					Image: types.RawFrame{
						FrameID:   frameID,
						Timestamp: float64(time.Now().UnixNano()) / 1e9,
						Image:     img,
					},
				}
				select {
				case <-ctx.Done():
					return
				case out <- msg:
				}
				frameID++
			}
		}
	}()

	return out
}

// Pattern is a red to green gradient across the width with a blue to yellow
// ramp down the height, covering both sides of the red threshold.
func Pattern(width, height int) frame.Frame {
	img := frame.New(width, height, frame.BGR)
	for y := 0; y < height; y++ {
		v := fraction(y, height)
		for x := 0; x < width; x++ {
			u := fraction(x, width)
			r := uint8(255 * (1 - u))
			g := uint8(255 * u)
			b := uint8(255 * (1 - v) * 0.6)
			img.SetRGB(x, y, r, g, b)
		}
	}
	return img
}

// drawBar paints a vertical gray bar that sweeps across the frame.
func drawBar(img frame.Frame, frameID int) {
	if img.Width < 8 {
		return
	}
	barWidth := img.Width / 16
	if barWidth < 2 {
		barWidth = 2
	}
	x0 := (frameID * 4) % img.Width
	for y := 0; y < img.Height; y++ {
		for x := x0; x < x0+barWidth && x < img.Width; x++ {
			img.SetRGB(x, y, 128, 128, 128)
		}
	}
}

func fraction(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
