package otel

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// untracedPaths are polled or long-lived and would only add noise.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/ws":      true,
}

// HTTPMiddleware returns a chi-compatible middleware that starts a server
// span per dashboard or MCP request, named "<METHOD> <path>". Health checks,
// scrapes and WebSocket upgrades are not traced. A nil tp uses the global
// provider.
func HTTPMiddleware(serviceName string, tp trace.TracerProvider) func(http.Handler) http.Handler {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithFilter(traced),
		otelhttp.WithSpanNameFormatter(spanName),
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}

func traced(r *http.Request) bool {
	return !untracedPaths[strings.TrimSuffix(r.URL.Path, "/")]
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}
