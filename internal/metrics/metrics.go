// Package metrics exposes Prometheus counters for the analytics engine.
package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// LegsSkipped counts legs that contributed zero because they could not be valued.
	LegsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "maof_legs_skipped_total", Help: "Legs degraded to zero during portfolio valuation"},
		[]string{"reason"},
	)
	// ScenarioCells counts portfolio valuations performed by scenario sweeps.
	ScenarioCells = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "maof_scenario_cells_total", Help: "Portfolio valuations evaluated by sweeps"},
		[]string{"kind"},
	)
	// Snapshots counts risk snapshots computed.
	Snapshots = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "maof_risk_snapshots_total", Help: "Risk snapshots computed"},
	)
)

func init() {
	prometheus.MustRegister(LegsSkipped, ScenarioCells, Snapshots)
}

// Serve binds addr and exposes /metrics on it in the background. A bind
// failure is returned; later serve errors are logged. The returned server's
// Addr is the bound address, so ":0" resolves to the chosen port.
func Serve(addr string, logger zerolog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", srv.Addr).Msg("Metrics server stopped")
		}
	}()
	return srv, nil
}
