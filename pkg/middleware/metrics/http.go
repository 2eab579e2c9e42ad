package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Handler serves the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }

// Module provides the scrape handler as name:"metrics" plus the dispatch and
// stream observers.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(Handler, fx.ResultTags(`name:"metrics"`)),
		func() Dispatch { return Dispatch{} },
		func() Stream { return Stream{} },
	),
)
