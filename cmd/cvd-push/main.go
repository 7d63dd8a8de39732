package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/imageio"
	"cvd-cam-go/internal/ingest"
	"cvd-cam-go/internal/simulator"
	"cvd-cam-go/internal/types"
)

func main() {
	var (
		endpoint = flag.String("endpoint", "tcp://*:31001", "ZMQ endpoint to bind the PUSH socket on")
		image    = flag.String("image", "", "Image file to send repeatedly; the simulator pattern is used when empty")
		fps      = flag.Float64("fps", 10, "Frames per second")
		count    = flag.Int("count", 0, "Frames to send (0 until interrupted)")
		width    = flag.Int("width", 640, "Pattern width")
		height   = flag.Int("height", 480, "Pattern height")
		filter   = flag.String("filter", "", "Filter name to embed in every frame")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pusher, err := ingest.NewPusher(*endpoint)
	if err != nil {
		log.Fatalf("bind %s: %v", *endpoint, err)
	}
	defer pusher.Close()

	var frames <-chan types.RawMessage
	if *image != "" {
		data, err := os.ReadFile(*image)
		if err != nil {
			log.Fatalf("read image: %v", err)
		}
		img, err := imageio.DecodeBytes(data, frame.BGR)
		if err != nil {
			log.Fatalf("decode image: %v", err)
		}
		frames = repeat(ctx, img, *fps)
	} else {
		frames = simulator.Stream(ctx, *width, *height, *fps)
	}

	log.WithField("endpoint", *endpoint).Info("pushing frames")
	sent := 0
	for msg := range frames {
		raw := msg.Image
		raw.Filter = *filter
		if err := pusher.Send(raw); err != nil {
			log.WithError(err).Warn("send failed")
			continue
		}
		sent++
		if *count > 0 && sent >= *count {
			break
		}
	}
	log.Infof("sent %d frames", sent)
}

func repeat(ctx context.Context, img frame.Frame, fps float64) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)
		if fps <= 0 {
			fps = 10
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()
		for frameID := 0; ; frameID++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			msg := types.RawMessage{Type: "frame", Image: types.RawFrame{
				FrameID:   frameID,
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
				Image:     img,
			}}
			select {
			case <-ctx.Done():
				return
			case out <- msg:
			}
		}
	}()
	return out
}
