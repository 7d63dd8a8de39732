package ingest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"cvd-cam-go/internal/frame"
)

const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint8Clamped  = 68
	tagCompressed    = 56500
)

// maxArrayDim is the largest single dimension accepted, a [h, w*3] row
// included. With at most three such dimensions the product cannot overflow.
const maxArrayDim = 3 * frame.MaxDimension

// pixelArray is a decoded tag 40 array of 8-bit samples.
type pixelArray struct {
	Dims []int
	Data []uint8
}

// frameGeometry interprets the array as height x width x 3, accepting either
// [h, w, 3] or [h, w*3].
func (p pixelArray) frameGeometry() (width, height int, err error) {
	switch len(p.Dims) {
	case 3:
		if p.Dims[2] != 3 {
			return 0, 0, fmt.Errorf("expected 3 channels, got %d", p.Dims[2])
		}
		height, width = p.Dims[0], p.Dims[1]
	case 2:
		if p.Dims[1]%3 != 0 {
			return 0, 0, fmt.Errorf("row length %d is not a multiple of 3", p.Dims[1])
		}
		height, width = p.Dims[0], p.Dims[1]/3
	default:
		return 0, 0, fmt.Errorf("unsupported array rank %d", len(p.Dims))
	}
	if width*height*3 != len(p.Data) {
		return 0, 0, errors.New("dimension mismatch")
	}
	return width, height, nil
}

func decodeMultiDimArray(value any) (pixelArray, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return pixelArray{}, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return pixelArray{}, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) < 2 || len(dimsRaw) > 3 {
		return pixelArray{}, fmt.Errorf("invalid multidim dimensions")
	}
	dims := make([]int, len(dimsRaw))
	total := 1
	for i, d := range dimsRaw {
		n, err := toInt(d)
		if err != nil {
			return pixelArray{}, err
		}
		if n <= 0 || n > maxArrayDim {
			return pixelArray{}, fmt.Errorf("invalid dimension %d", n)
		}
		dims[i] = n
		total *= n
	}

	data, err := decodeTypedArray(items[1])
	if err != nil {
		return pixelArray{}, err
	}
	if total != len(data) {
		return pixelArray{}, errors.New("dimension mismatch")
	}
	return pixelArray{Dims: dims, Data: data}, nil
}

func decodeTypedArray(value any) ([]uint8, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case cbor.Tag:
		switch v.Number {
		case tagUint8, tagUint8Clamped:
		case tagCompressed:
			return nil, errors.New("compressed pixel payloads are not supported")
		default:
			return nil, fmt.Errorf("unsupported typed array tag %d", v.Number)
		}
		data, ok := v.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("unsupported typed array content %T", v.Content)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("expected typed array, got %T", value)
	}
}

func encodeMultiDimArray(height, width int, pix []uint8) cbor.Tag {
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{height, width, 3},
			cbor.Tag{Number: tagUint8, Content: pix},
		},
	}
}
