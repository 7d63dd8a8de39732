package ingest

import (
	"time"

	"github.com/pebbe/zmq4"

	"cvd-cam-go/internal/types"
)

// Pusher sends frames to a Stream listening on the other end of a ZMQ
// PUSH/PULL pair. It is the capture side used by tools and tests.
type Pusher struct {
	socket *zmq4.Socket
}

// NewPusher binds a PUSH socket on endpoint, e.g. "tcp://*:31001".
func NewPusher(endpoint string) (*Pusher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	if err := socket.SetLinger(time.Second); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &Pusher{socket: socket}, nil
}

func (p *Pusher) Send(raw types.RawFrame) error {
	payload, err := EncodeFrame(raw)
	if err != nil {
		return err
	}
	_, err = p.socket.SendBytes(payload, 0)
	return err
}

func (p *Pusher) Close() error {
	return p.socket.Close()
}
