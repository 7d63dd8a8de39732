package processing

import (
	"cvd-cam-go/internal/filter"
	"cvd-cam-go/internal/frame"
	"cvd-cam-go/internal/types"
)

// Applier is the part of the filter dispatcher the workers need.
type Applier interface {
	Apply(name string, f frame.Frame) (frame.Frame, error)
}

// ProcessRawFrame filters raw with the given selection. A filter named in the
// frame itself takes precedence over selection. The returned Filter is the
// name actually applied, on error as well.
func ProcessRawFrame(d Applier, selection string, raw types.RawFrame) (types.Frame, error) {
	name := selection
	if raw.Filter != "" {
		name = raw.Filter
	}
	if name == "" {
		name = filter.Original
	}
	out, err := d.Apply(name, raw.Image)
	if err != nil {
		return types.Frame{FrameID: raw.FrameID, Timestamp: raw.Timestamp, Filter: name}, err
	}
	return types.Frame{
		FrameID:   raw.FrameID,
		Timestamp: raw.Timestamp,
		Filter:    name,
		Image:     out,
	}, nil
}
