package metrics

import (
	"time"

	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
)

// unmatched replaces the path label of calls that hit no registered function,
// so arbitrary client paths cannot grow the label set.
const unmatched = "unmatched"

// Dispatch records server function outcomes. It satisfies core.Observer.
type Dispatch struct{}

func (Dispatch) ObserveDispatch(path, kind string, elapsed time.Duration) {
	if kind == "not_found" {
		path = unmatched
	}
	dispatchTotal.WithLabelValues(path, kind).Inc()
	dispatchSeconds.WithLabelValues(path).Observe(elapsed.Seconds())
}

// Stream counts emitted chunks. It satisfies stream.Observer.
type Stream struct{}

func (Stream) ObserveChunk(kind stream.Kind) {
	streamChunks.WithLabelValues(kind.String()).Inc()
}
