package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"github.com/sirupsen/logrus"

	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/types"
)

const recvPollInterval = 250 * time.Millisecond

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

// DecodeFailures returns the number of messages that could not be decoded.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

// Stream returns a channel of messages pulled from a capture process.
// Expects CBOR messages shaped like:
// { "type": "frame", "frame_id": <int>, "timestamp": <float>, "channel_order": "bgr",
//   "filter": <optional string>, "data": tag40([h, w, 3], tag64(bytes)) }
func Stream(ctx context.Context, endpoint string, logEvery int, log logrus.FieldLogger) (<-chan types.RawMessage, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvPollInterval); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	log = log.WithField("endpoint", endpoint)
	throttle := &logThrottle{every: uint64(logEvery)}
	out := make(chan types.RawMessage, 16)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				throttle.log(log.WithError(err), "ingest recv error")
				continue
			}

			start := time.Now()
			raw, err := DecodeMessage(msg)
			decodeCount.Add(1)
			decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
			if err != nil {
				decodeFailures.Add(1)
				throttle.log(log.WithError(err), "ingest decode skipped message")
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- raw:
			}
		}
	}()

	return out, nil
}

// DecodeMessage decodes one CBOR message. Messages other than "frame" are
// returned with their payload in Meta.
func DecodeMessage(msg []byte) (types.RawMessage, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return types.RawMessage{}, fmt.Errorf("CBOR decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	if msgType != "frame" {
		if msgType == "" {
			msgType = "metadata"
		}
		meta, _ := NormalizeJSONValue(payload).(map[string]any)
		return types.RawMessage{Type: msgType, Meta: meta}, nil
	}

	frameID, err := toInt(payload["frame_id"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid frame_id: %w", err)
	}
	var timestamp float64
	if v, ok := payload["timestamp"]; ok {
		if timestamp, err = toFloat(v); err != nil {
			return types.RawMessage{}, fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	orderName, _ := payload["channel_order"].(string)
	order, err := frame.ParseChannelOrder(orderName)
	if err != nil {
		return types.RawMessage{}, err
	}
	filterName, _ := payload["filter"].(string)

	pixels, err := decodeMultiDimArray(payload["data"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid data: %w", err)
	}
	width, height, err := pixels.frameGeometry()
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid data: %w", err)
	}

	return types.RawMessage{
		Type: "frame",
		Image: types.RawFrame{
			FrameID:   frameID,
			Timestamp: timestamp,
			Filter:    filterName,
			Image: frame.Frame{
				Width:  width,
				Height: height,
				Order:  order,
				Pix:    pixels.Data,
			},
		},
	}, nil
}

// EncodeFrame is the inverse of DecodeMessage for frame messages.
func EncodeFrame(raw types.RawFrame) ([]byte, error) {
	if err := raw.Image.Validate(); err != nil {
		return nil, err
	}
	msg := map[string]any{
		"type":          "frame",
		"frame_id":      raw.FrameID,
		"timestamp":     raw.Timestamp,
		"channel_order": raw.Image.Order.String(),
		"data":          encodeMultiDimArray(raw.Image.Height, raw.Image.Width, raw.Image.Pix),
	}
	if raw.Filter != "" {
		msg["filter"] = raw.Filter
	}
	return cbor.Marshal(msg)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

type logThrottle struct {
	every uint64
	count atomic.Uint64
}

func (l *logThrottle) log(entry logrus.FieldLogger, msg string) {
	if l.count.Add(1)%l.every == 0 {
		entry.Warn(msg)
	}
}
