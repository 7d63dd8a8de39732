package ingest

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NormalizeJSONValue rewrites a decoded CBOR value so encoding/json accepts
// it: maps get string keys, byte strings become hex and tags are unwrapped.
func NormalizeJSONValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case []byte:
		return hex.EncodeToString(val)
	case cbor.Tag:
		return map[string]any{"tag": val.Number, "content": NormalizeJSONValue(val.Content)}
	default:
		return v
	}
}
