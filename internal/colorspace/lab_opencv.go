//go:build opencv

package colorspace

import (
	"gocv.io/x/gocv"

	"cvd-cam-go/internal/frame"
)

func toLab(f frame.Frame) LabFrame {
	code := gocv.ColorBGRToLab
	if f.Order == frame.RGB {
		code = gocv.ColorRGBToLab
	}
	pix, ok := cvtColor(f.Pix, f.Width, f.Height, code)
	if !ok {
		return toLabPortable(f)
	}
	return LabFrame{Width: f.Width, Height: f.Height, Pix: pix}
}

func fromLab(lab LabFrame, order frame.ChannelOrder) frame.Frame {
	code := gocv.ColorLabToBGR
	if order == frame.RGB {
		code = gocv.ColorLabToRGB
	}
	pix, ok := cvtColor(lab.Pix, lab.Width, lab.Height, code)
	if !ok {
		return fromLabPortable(lab, order)
	}
	return frame.Frame{Width: lab.Width, Height: lab.Height, Order: order, Pix: pix}
}

func cvtColor(pix []uint8, width, height int, code gocv.ColorConversionCode) ([]uint8, bool) {
	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, false
	}
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.CvtColor(src, &dst, code); err != nil {
		return nil, false
	}
	out := dst.ToBytes()
	if len(out) != len(pix) {
		return nil, false
	}
	return out, true
}
