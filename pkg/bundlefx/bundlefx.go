package bundlefx

import (
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-ssr/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module provides the ambient middleware: auth, zap loggers, Prometheus.
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
