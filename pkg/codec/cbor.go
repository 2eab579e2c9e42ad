package codec

import (
	"github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR is the minimal-footprint codec: deterministic map ordering and the
// shortest float encoding that preserves the value.
var CBOR Codec = mustCBOR()

func mustCBOR() Codec {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		ShortestFloat: cbor.ShortestFloat16,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: em, dec: dm}
}

func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

// Unmarshal rejects unknown fields and any bytes after the first data item.
func (c cborCodec) Unmarshal(data []byte, v any) error {
	if err := c.dec.Unmarshal(data, v); err != nil {
		return decodeErr(c, err)
	}
	return nil
}

func (cborCodec) ContentType() string { return "application/cbor" }
func (cborCodec) Name() string        { return "cbor" }
