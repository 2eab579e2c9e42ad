// pkg/codec/codec.go
package codec

import (
	"fmt"
	"mime"
	"strings"
)

// Codec converts typed values to and from bytes for one wire format.
// Implementations are stateless and safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
	Name() string
}

// DecodeError carries the codec-specific diagnostic for a body that could not
// be decoded into the requested type.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(c Codec, err error) error {
	return &DecodeError{Codec: c.Name(), Err: err}
}

var byName = map[string]Codec{
	JSON.Name():    JSON,
	MsgPack.Name(): MsgPack,
	CBOR.Name():    CBOR,
	URL.Name():     URL,
}

// ByName returns the codec registered under a format tag (json, msgpack, cbor, url).
func ByName(name string) (Codec, bool) {
	c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ByContentType maps a Content-Type header value to a codec, ignoring parameters.
func ByContentType(ct string) (Codec, bool) {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, false
	}
	for _, c := range byName {
		if c.ContentType() == mt {
			return c, true
		}
	}
	return nil, false
}

// Names lists the built-in format tags.
func Names() []string {
	return []string{JSON.Name(), MsgPack.Name(), CBOR.Name(), URL.Name()}
}
