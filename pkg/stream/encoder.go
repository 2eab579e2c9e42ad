package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime"
	"strconv"
	"strings"
)

// Encoder serializes chunks for the client runtime.
type Encoder interface {
	AppendChunk(dst []byte, c Chunk) []byte
}

// HTMLEncoder emits chunks as HTML fragments understood by the steeze client
// runtime:
//
//	Placeholder    <steeze-suspense id="s-N">fallback</steeze-suspense>
//	ResourceUpdate <script type="application/steeze-resource" data-id="N" ...>payload</script>
//	               <script>window.__steeze&&__steeze.patch(N)</script>
//	End            <script>window.__steeze&&__steeze.end()</script>
//
// JSON payloads are inlined; any other codec is base64 encoded.
type HTMLEncoder struct{}

func (HTMLEncoder) AppendChunk(dst []byte, c Chunk) []byte {
	switch c.Kind {
	case KindMarkup:
		return append(dst, c.Markup...)
	case KindPlaceholder:
		dst = append(dst, `<steeze-suspense id="s-`...)
		dst = strconv.AppendUint(dst, uint64(c.ID), 10)
		dst = append(dst, `">`...)
		dst = append(dst, c.Markup...)
		return append(dst, `</steeze-suspense>`...)
	case KindResourceUpdate:
		if c.Err != "" {
			msg, _ := json.Marshal(c.Err)
			dst = append(dst, `<script>window.__steeze&&__steeze.reject(`...)
			dst = strconv.AppendUint(dst, uint64(c.ID), 10)
			dst = append(dst, ',')
			dst = appendScriptSafe(dst, msg)
			return append(dst, `)</script>`...)
		}
		dst = append(dst, `<script type="application/steeze-resource" data-id="`...)
		dst = strconv.AppendUint(dst, uint64(c.ID), 10)
		dst = append(dst, `" data-type="`...)
		dst = append(dst, escapeAttr(c.ContentType)...)
		if isJSON(c.ContentType) {
			dst = append(dst, `" data-encoding="json">`...)
			dst = appendScriptSafe(dst, c.Value)
		} else {
			dst = append(dst, `" data-encoding="base64">`...)
			dst = append(dst, base64.StdEncoding.EncodeToString(c.Value)...)
		}
		dst = append(dst, `</script><script>window.__steeze&&__steeze.patch(`...)
		dst = strconv.AppendUint(dst, uint64(c.ID), 10)
		return append(dst, `)</script>`...)
	case KindEnd:
		return append(dst, `<script>window.__steeze&&__steeze.end()</script>`...)
	default:
		return dst
	}
}

// Encode is AppendChunk into a fresh buffer.
func (e HTMLEncoder) Encode(c Chunk) []byte { return e.AppendChunk(nil, c) }

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// appendScriptSafe copies JSON into a script element. '<', '>' and '&' only
// occur inside JSON strings, where their \u escapes are equivalent.
func appendScriptSafe(dst, js []byte) []byte {
	for len(js) > 0 {
		i := bytes.IndexAny(js, "<>&")
		if i < 0 {
			return append(dst, js...)
		}
		dst = append(dst, js[:i]...)
		switch js[i] {
		case '<':
			dst = append(dst, `\u003c`...)
		case '>':
			dst = append(dst, `\u003e`...)
		case '&':
			dst = append(dst, `\u0026`...)
		}
		js = js[i+1:]
	}
	return dst
}

// escapeAttr escapes text for an HTML attribute value.
func escapeAttr(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		case '\n':
			buf.WriteString("&#10;")
		case '\r':
			buf.WriteString("&#13;")
		case '\t':
			buf.WriteString("&#9;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}
