package cli

import (
	"fmt"

	"resumatch/internal/config"
	"resumatch/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis server",
	Long: `Start an HTTP server exposing the resume analysis pipeline as a REST API.

Endpoints:
  POST /api/v1/analyze   score a resume against a job description
  POST /api/v1/extract   extract the text layer from a resume PDF
  POST /api/v1/keywords  derive keywords from a job description
  GET  /api/v1/health    health check
  GET  /api/v1/stats     server statistics and rate limiting info

TLS is controlled by --tls-mode (disabled, server, or mutual) together
with --cert-file, --key-file, and, for mutual TLS, --ca-file.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringP("port", "p", "", "Port to listen on (overrides the configured port)")
	flags.String("host", "", "Host to bind to (overrides the configured host)")
	flags.String("tls-mode", "", "TLS mode: disabled, server, or mutual")
	flags.String("cert-file", "", "PEM server certificate")
	flags.String("key-file", "", "PEM server private key")
	flags.String("ca-file", "", "PEM CA bundle for verifying client certificates")

	// Flag values flow through viper so they land in the loaded config.
	for key, flag := range map[string]string{
		"server.port":         "port",
		"server.host":         "host",
		"server.tls.mode":     "tls-mode",
		"server.tls.certfile": "cert-file",
		"server.tls.keyfile":  "key-file",
		"server.tls.cafile":   "ca-file",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := loggerFrom(cmd.Context())
	if err != nil {
		return err
	}

	// Flag overrides are in the config by now, so validate after them.
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("validating TLS settings: %w", err)
	}

	return server.NewServer(cfg, serverConfigFrom(cfg), logger).Start()
}

func serverConfigFrom(cfg *config.Config) server.ServerConfig {
	return server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
}
