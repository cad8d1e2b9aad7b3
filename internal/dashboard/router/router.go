// Package router wires the dashboard routes and applies the middleware
// chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/dashboard/handler"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/render"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/ratelimit"
)

// Options configures the middleware chain. Limiter and ServeMetrics are
// optional.
type Options struct {
	Metrics        *metrics.Metrics
	Health         *health.Checker
	Limiter        *ratelimit.Limiter
	CookieName     string
	RequestTimeout time.Duration
	// ServeMetrics mounts /metrics on this mux, for deployments without a
	// separate metrics port.
	ServeMetrics bool
}

// New builds the dashboard HTTP handler.
//
// Route table:
//
//	GET    /                          → dashboard page
//	GET    /api/v1/controls           → control options and bounds
//	GET    /api/v1/dataset            → dataset summary
//	POST   /api/v1/figure             → apply filter, clear selection
//	GET    /api/v1/figure.svg         → rendered figure (SVG)
//	GET    /api/v1/figure.png         → rendered figure (PNG)
//	GET    /api/v1/selection          → current table
//	POST   /api/v1/selection          → select positions
//	POST   /api/v1/selection/box      → select inside a rectangle
//	POST   /api/v1/selection/lasso    → select inside a polygon
//	DELETE /api/v1/selection          → clear selection
//	GET    /api/v1/cache/stats        → figure cache stats
//	POST   /api/v1/cache/invalidate   → drop cached figures
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first):
//
//	RequestID → AccessLog → CORS → Metrics → RateLimit → Timeout → mux
func New(h *handler.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Page)

	mux.HandleFunc("GET /api/v1/controls", h.Controls)
	mux.HandleFunc("GET /api/v1/dataset", h.Dataset)

	mux.HandleFunc("POST /api/v1/figure", h.ApplyFilter)
	mux.HandleFunc("GET /api/v1/figure.svg", h.FigureImage(render.SVG))
	mux.HandleFunc("GET /api/v1/figure.png", h.FigureImage(render.PNG))

	mux.HandleFunc("GET /api/v1/selection", h.Selection)
	mux.HandleFunc("POST /api/v1/selection", h.SelectPoints)
	mux.HandleFunc("POST /api/v1/selection/box", h.SelectBox)
	mux.HandleFunc("POST /api/v1/selection/lasso", h.SelectLasso)
	mux.HandleFunc("DELETE /api/v1/selection", h.ClearSelection)
	mux.HandleFunc("DELETE /api/v1/session", h.ResetSession)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.InvalidateCache)

	if opts.Health != nil {
		mux.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}
	if opts.ServeMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	if opts.RequestTimeout > 0 {
		chain = pkgmw.Timeout(opts.RequestTimeout)(chain)
	}
	if opts.Limiter != nil {
		chain = pkgmw.RateLimit(opts.Limiter, opts.CookieName)(chain)
	}
	chain = pkgmw.Metrics(opts.Metrics)(chain)
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.AccessLog(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
