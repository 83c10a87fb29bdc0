package observability

import (
	"resumatch/internal/config"
)

// Config is the subset of settings the manager consults on
// every decision. Rarely-read nested settings stay on the full config.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// PrometheusConfig configures the scrape endpoint.
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// ConfigFrom maps the application's observability section
// onto the manager's config. The app version fills in when no service
// version is set, and a nil config yields development defaults.
func ConfigFrom(cfg *config.Config, version string) Config {
	if cfg == nil {
		return Config{
			ServiceName:    "resumatch",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus: PrometheusConfig{
				Enabled:  true,
				Endpoint: "/metrics",
				Port:     "9090",
			},
		}
	}

	obs := cfg.Observability
	ver := obs.ServiceVersion
	if ver == "" {
		ver = version
	}

	return Config{
		ServiceName:    obs.ServiceName,
		ServiceVersion: ver,
		Enabled:        obs.Enabled,
		ConsoleOutput:  obs.ConsoleOutput,
		PrettyPrint:    obs.Console.PrettyPrint,
		SampleRate:     obs.SampleRate,
		Prometheus: PrometheusConfig{
			Enabled:  obs.Prometheus.Enabled,
			Endpoint: obs.Prometheus.Endpoint,
			Port:     obs.Prometheus.Port,
		},
	}
}
