package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"

	"cvd-cam-go/internal/ingest"
	"cvd-cam-go/internal/types"
)

type summary struct {
	Record    int            `json:"record"`
	Type      string         `json:"type"`
	FrameID   int            `json:"frame_id,omitempty"`
	Timestamp float64        `json:"timestamp,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Order     string         `json:"channel_order,omitempty"`
	Filter    string         `json:"filter,omitempty"`
	Bytes     int            `json:"bytes,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

func main() {
	var (
		path     = flag.String("path", "", "File of concatenated CBOR capture messages")
		endpoint = flag.String("endpoint", "", "ZMQ endpoint to read live messages from instead of a file")
		limit    = flag.Int("limit", 1, "Number of records to dump (0 for all)")
	)
	flag.Parse()

	switch {
	case *path != "":
		dumpFile(*path, *limit)
	case *endpoint != "":
		dumpLive(*endpoint, *limit)
	default:
		log.Fatal("path or endpoint is required")
	}
}

func dumpFile(path string, limit int) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open capture file: %v", err)
	}
	defer f.Close()

	dec := cbor.NewDecoder(f)
	for count := 0; limit <= 0 || count < limit; count++ {
		var record cbor.RawMessage
		if err := dec.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.Fatalf("read record %d: %v", count, err)
		}
		msg, err := ingest.DecodeMessage(record)
		if err != nil {
			log.Printf("record %d: decode error: %v", count, err)
			continue
		}
		printSummary(summarize(count, msg, len(record)))
	}
}

func dumpLive(endpoint string, limit int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, err := ingest.Stream(ctx, endpoint, 1, log.StandardLogger())
	if err != nil {
		log.Fatalf("connect %s: %v", endpoint, err)
	}
	count := 0
	for msg := range messages {
		printSummary(summarize(count, msg, 0))
		count++
		if limit > 0 && count >= limit {
			return
		}
	}
}

func summarize(record int, msg types.RawMessage, size int) summary {
	s := summary{Record: record, Type: msg.Type, Bytes: size, Meta: msg.Meta}
	if msg.Type == "frame" {
		img := msg.Image.Image
		s.FrameID = msg.Image.FrameID
		s.Timestamp = msg.Image.Timestamp
		s.Width = img.Width
		s.Height = img.Height
		s.Order = img.Order.String()
		s.Filter = msg.Image.Filter
	}
	return s
}

func printSummary(s summary) {
	pretty, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Printf("record %d: JSON encode error: %v", s.Record, err)
		return
	}
	fmt.Println(string(pretty))
}
