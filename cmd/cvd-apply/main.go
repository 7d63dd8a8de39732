package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"cvd-cam-go/internal/filter"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/imageio"
	"cvd-cam-go/internal/ingest"
	"cvd-cam-go/internal/processing"
	"cvd-cam-go/internal/types"
)

func main() {
	var (
		path    = flag.String("path", "", "Image or CBOR frame file, or a directory of them")
		name    = flag.String("filter", filter.Deuteranope, "Filter to apply, or \"all\"")
		outDir  = flag.String("out", "filtered", "Output directory for PNG files")
		verbose = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *path == "" {
		log.Fatal("path is required")
	}

	dispatcher := filter.NewDispatcher()
	names := []string{*name}
	if *name == "all" {
		names = dispatcher.Names()
	} else if !dispatcher.Has(*name) {
		log.Fatalf("unknown filter %q (available: %s)", *name, strings.Join(dispatcher.Names(), ", "))
	}

	inputs, err := collectInputs(*path)
	if err != nil {
		log.Fatalf("read inputs: %v", err)
	}
	if len(inputs) == 0 {
		log.Fatalf("no images found under %s", *path)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	stats := processing.NewStats()
	stamp := processing.Timestamp()
	written := 0
	for _, input := range inputs {
		raw, err := loadFrame(input)
		if err != nil {
			log.WithError(err).WithField("file", input).Warn("skipping input")
			continue
		}
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		for _, n := range names {
			start := time.Now()
			out, err := processing.ProcessRawFrame(dispatcher, n, raw)
			if err != nil {
				stats.AddError(out.Filter)
				log.WithError(err).WithFields(log.Fields{"file": input, "filter": n}).Warn("filter failed")
				continue
			}
			stats.Add(n, out.Image.Width*out.Image.Height, time.Since(start))
			target := filepath.Join(*outDir, fmt.Sprintf("%s_%s_%s.png", base, slug(n), stamp))
			if err := writePNG(target, out.Image); err != nil {
				log.Fatalf("write %s: %v", target, err)
			}
			log.WithField("file", target).Debug("wrote")
			written++
		}
	}

	for n, fs := range stats.SnapshotCopy() {
		log.WithFields(log.Fields{
			"filter":  n,
			"frames":  fs.Frames,
			"errors":  fs.Errors,
			"mean_ms": fmt.Sprintf("%.2f", fs.MeanMillis()),
		}).Info("filter stats")
	}
	log.Infof("wrote %d images to %s", written, *outDir)
}

func collectInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var inputs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp", ".cbor":
			inputs = append(inputs, filepath.Join(path, entry.Name()))
		}
	}
	return inputs, nil
}

func loadFrame(path string) (types.RawFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.RawFrame{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		msg, err := ingest.DecodeMessage(data)
		if err != nil {
			return types.RawFrame{}, err
		}
		if msg.Type != "frame" {
			return types.RawFrame{}, fmt.Errorf("%s holds a %q message, not a frame", path, msg.Type)
		}
		// The output name already carries the filter; ignore the one in the message.
		msg.Image.Filter = ""
		return msg.Image, nil
	}
	img, err := imageio.DecodeBytes(data, frame.BGR)
	if err != nil {
		return types.RawFrame{}, err
	}
	return types.RawFrame{Image: img}, nil
}

func writePNG(path string, img frame.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imageio.EncodePNG(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func slug(name string) string {
	replacer := strings.NewReplacer(" & ", "-", " ", "-")
	return strings.ToLower(replacer.Replace(name))
}
