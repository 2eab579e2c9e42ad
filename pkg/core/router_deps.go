package core

import (
	"net/http"

	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-ssr/pkg/stream"
	httpx "github.com/joeydtaylor/steeze-ssr/pkg/transport/httpx"
	"go.uber.org/zap"
)

// BuildDeps is everything BuildRouter mounts. Only Router, Registry and
// Dispatcher are required.
type BuildDeps struct {
	Auth       *auth.Middleware
	LogMW      *logger.Middleware
	Metrics    http.Handler
	Router     httpx.Router
	Registry   *Registry
	Dispatcher *Dispatcher
	Pages      []stream.Page
	Stream     stream.Observer
	Logger     *zap.Logger
}
