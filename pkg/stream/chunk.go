// Package stream drives an out-of-order ("suspense") streaming render: markup
// is emitted as it is produced, unresolved resources become placeholders, and
// each resource is patched in by a follow-up chunk once it resolves.
package stream

import "github.com/joeydtaylor/steeze-ssr/pkg/hydration"

// Kind tags a Chunk.
type Kind uint8

const (
	KindMarkup Kind = iota + 1
	KindPlaceholder
	KindResourceUpdate
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindPlaceholder:
		return "placeholder"
	case KindResourceUpdate:
		return "resource_update"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Chunk is one element of the streamed sequence.
//
//	Markup:         Markup holds rendered bytes
//	Placeholder:    ID of the pending resource, Markup holds its fallback
//	ResourceUpdate: ID plus either Value (encoded with ContentType) or Err
//	End:            explicit end marker
type Chunk struct {
	Kind        Kind
	Markup      []byte
	ID          hydration.ID
	Value       []byte
	ContentType string
	Err         string
}
