package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

type msgpackCodec struct{}

// MsgPack is the compact-binary codec. Struct fields are keyed by their json tags
// so the same types serve every codec.
var MsgPack Codec = msgpackCodec{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return decodeErr(c, err)
	}
	if r.Len() > 0 {
		return decodeErr(c, errors.New("trailing content"))
	}
	return nil
}

func (msgpackCodec) ContentType() string { return "application/msgpack" }
func (msgpackCodec) Name() string        { return "msgpack" }
