package ingest

import (
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestDecodeMultiDimArrayUint8(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(1), uint64(2), uint64(3)},
			cbor.Tag{
				Number:  tagUint8,
				Content: []byte{1, 2, 3, 4, 5, 6},
			},
		},
	}

	got, err := decodeMultiDimArray(value)
	if err != nil {
		t.Fatalf("decodeMultiDimArray error: %v", err)
	}

	want := pixelArray{Dims: []int{1, 2, 3}, Data: []byte{1, 2, 3, 4, 5, 6}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeMultiDimArray mismatch: got %#v want %#v", got, want)
	}

	w, h, err := got.frameGeometry()
	if err != nil {
		t.Fatalf("frameGeometry error: %v", err)
	}
	if w != 2 || h != 1 {
		t.Fatalf("unexpected geometry %dx%d", w, h)
	}
}

func TestDecodeMultiDimArrayFlatRows(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(2), uint64(3)},
			cbor.Tag{Number: tagUint8, Content: []byte{1, 2, 3, 4, 5, 6}},
		},
	}
	got, err := decodeMultiDimArray(value)
	if err != nil {
		t.Fatalf("decodeMultiDimArray error: %v", err)
	}
	w, h, err := got.frameGeometry()
	if err != nil {
		t.Fatalf("frameGeometry error: %v", err)
	}
	if w != 1 || h != 2 {
		t.Fatalf("unexpected geometry %dx%d", w, h)
	}
}

func TestDecodeMultiDimArrayRejectsMismatch(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(2), uint64(2), uint64(3)},
			cbor.Tag{Number: tagUint8, Content: []byte{1, 2, 3}},
		},
	}
	if _, err := decodeMultiDimArray(value); err == nil {
		t.Fatalf("expected dimension mismatch")
	}
}

func TestDecodeTypedArrayRejectsCompressed(t *testing.T) {
	value := cbor.Tag{Number: tagCompressed, Content: []any{"bslz4", 1, []byte{}}}
	if _, err := decodeTypedArray(value); err == nil {
		t.Fatalf("expected error for compressed payload")
	}
}

func TestDecodeMultiDimArrayRejectsOversizedDims(t *testing.T) {
	// 2^32 x 2^32 x 3 wraps to a zero element count.
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(1 << 32), uint64(1 << 32), uint64(3)},
			cbor.Tag{Number: tagUint8, Content: []byte{}},
		},
	}
	if _, err := decodeMultiDimArray(value); err == nil {
		t.Fatalf("expected oversized dimensions to be rejected")
	}

	value.Content = []any{
		[]any{uint64(1), uint64(maxArrayDim + 3)},
		cbor.Tag{Number: tagUint8, Content: make([]byte, maxArrayDim+3)},
	}
	if _, err := decodeMultiDimArray(value); err == nil {
		t.Fatalf("expected row longer than %d to be rejected", maxArrayDim)
	}
}
