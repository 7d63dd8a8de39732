//go:build !opencv

package colorspace

import "cvd-cam-go/internal/frame"

func toLab(f frame.Frame) LabFrame {
	return toLabPortable(f)
}

func fromLab(lab LabFrame, order frame.ChannelOrder) frame.Frame {
	return fromLabPortable(lab, order)
}
