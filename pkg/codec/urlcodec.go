package codec

import (
	"errors"
	"net/url"
	"reflect"

	"github.com/gorilla/schema"
)

type urlCodec struct{}

// URL encodes struct arguments as application/x-www-form-urlencoded, the form
// GET functions receive in their query string. Fields are keyed by json tags.
var URL Codec = urlCodec{}

var errURLStruct = errors.New("url codec supports struct values only")

func (urlCodec) Marshal(v any) ([]byte, error) {
	if !isStruct(v) {
		return nil, errURLStruct
	}
	enc := schema.NewEncoder()
	enc.SetAliasTag("json")
	vals := url.Values{}
	if err := enc.Encode(v, vals); err != nil {
		return nil, err
	}
	return []byte(vals.Encode()), nil
}

func (c urlCodec) Unmarshal(data []byte, v any) error {
	vals, err := url.ParseQuery(string(data))
	if err != nil {
		return decodeErr(c, err)
	}
	dec := schema.NewDecoder()
	dec.SetAliasTag("json")
	dec.IgnoreUnknownKeys(false)
	if err := dec.Decode(v, vals); err != nil {
		return decodeErr(c, err)
	}
	return nil
}

func (urlCodec) ContentType() string { return "application/x-www-form-urlencoded" }
func (urlCodec) Name() string        { return "url" }

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}
