package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// startPrometheus registers an OTel exporter with the default Prometheus
// registry and begins serving scrapes on a dedicated port.
func (om *Manager) startPrometheus() (sdkmetric.Reader, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	endpoint := om.config.Prometheus.Endpoint
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.Handler())

	servePrometheus(mux, om.config.Prometheus.Port, endpoint)
	return exp, nil
}

// servePrometheus runs the scrape endpoint on its own listener, separate
// from the API server.
func servePrometheus(mux *http.ServeMux, port, endpoint string) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	fmt.Printf("Prometheus metrics available at http://localhost%s%s\n", srv.Addr, endpoint)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Prometheus metrics server error: %v\n", err)
		}
	}()
}
