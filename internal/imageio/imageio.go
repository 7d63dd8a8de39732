// Package imageio converts between encoded images, image.Image and frames.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"cvd-cam-go/internal/frame"
)

const DefaultJPEGQuality = 80

// Decode reads a JPEG, PNG, WebP, BMP or TIFF image into a frame with the
// given channel order.
func Decode(r io.Reader, order frame.ChannelOrder) (frame.Frame, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return frame.Frame{}, "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img, order), format, nil
}

func DecodeBytes(data []byte, order frame.ChannelOrder) (frame.Frame, error) {
	f, _, err := Decode(bytes.NewReader(data), order)
	return f, err
}

// FromImage copies img into a new frame. Alpha is dropped.
func FromImage(img image.Image, order frame.ChannelOrder) frame.Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	out := frame.New(b.Dx(), b.Dy(), order)
	for y := 0; y < out.Height; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+out.Width*4]
		for x := 0; x < out.Width; x++ {
			out.SetRGB(x, y, src[x*4], src[x*4+1], src[x*4+2])
		}
	}
	return out
}

// ToImage returns an opaque RGBA copy of f.
func ToImage(f frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGBAt(x, y)
			dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = r, g, b, 0xff
		}
	}
	return img
}

func EncodeJPEG(w io.Writer, f frame.Frame, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return jpeg.Encode(w, ToImage(f), &jpeg.Options{Quality: quality})
}

func EncodeJPEGBytes(f frame.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, f, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodePNG(w io.Writer, f frame.Frame) error {
	return png.Encode(w, ToImage(f))
}
