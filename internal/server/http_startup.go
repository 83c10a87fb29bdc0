package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"resumatch/internal/ai"
	"resumatch/internal/analyzer"
	"resumatch/internal/observability"
	"resumatch/internal/utils"
)

// Start brings up observability, the analysis pipeline and the HTTP listener,
// then blocks until a shutdown signal arrives.
func (s *Server) Start() error {
	obsCfg := observability.ConfigFrom(s.AppConfig, s.Version)
	om, err := observability.NewManager(obsCfg, s.AppConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(ctx); err != nil {
			s.Logger.LogError(err, "Observability shutdown failed")
		}
	}()

	if err := s.initAnalysisPipeline(); err != nil {
		return err
	}

	mux := s.routes(om)
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      om.HTTPMiddleware()(mux),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}

	vaultClient, err := s.newVaultClient()
	if err != nil {
		return err
	}
	if err := s.configureTLS(httpServer, vaultClient, om); err != nil {
		return err
	}

	s.printStartupSummary()

	return s.serveUntilSignal(httpServer)
}

// initAnalysisPipeline builds the analysis pipeline around a single AI
// service. The service lives for the whole server lifetime so circuit
// breaker state accumulates across requests instead of resetting per call.
func (s *Server) initAnalysisPipeline() error {
	aiCfg := s.AppConfig.GetAnalyzeConfig()
	service, err := ai.NewService(&aiCfg, "analyze", s.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AI service: %w", err)
	}

	s.AIService = service
	s.Analyzer = analyzer.New(service.Provider, s.Extractor, s.Deriver, s.Logger)
	return nil
}

// serveUntilSignal runs the listener in the background and waits for a
// termination signal or a listen error.
func (s *Server) serveUntilSignal(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr, "tls_enabled", server.TLSConfig != nil)

		err := s.listen(server)
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal", "signal", sig.String())
		return s.shutdown(server)
	}
}

// listen starts the listener matching the TLS configuration. Certificates
// are already wired into TLSConfig, either statically or through the
// certificate manager, so no file paths are passed here; passing them would
// load a static copy that shadows the manager's GetCertificate.
func (s *Server) listen(server *http.Server) error {
	if server.TLSConfig == nil {
		return server.ListenAndServe()
	}
	return server.ListenAndServeTLS("", "")
}

// shutdown drains in-flight requests and releases server resources.
func (s *Server) shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.CertificateManager != nil {
		if err := s.CertificateManager.Stop(); err != nil {
			s.Logger.LogError(err, "Certificate manager did not stop cleanly")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}

	s.Logger.Info("Shutting down HTTP server")
	if err := server.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Graceful shutdown failed, closing immediately")
		s.closeAIService()
		return server.Close()
	}

	// Close the AI client only after in-flight requests have drained
	s.closeAIService()

	s.Logger.Info("Server shutdown completed")
	return nil
}

// closeAIService closes the AI service created at startup
func (s *Server) closeAIService() {
	if s.AIService == nil {
		return
	}
	if err := s.AIService.Close(); err != nil {
		s.Logger.LogError(err, "Failed to close AI service")
	}
}

// printStartupSummary lists the endpoints and the protection applied to them.
func (s *Server) printStartupSummary() {
	fmt.Println("Registered endpoints:")
	fmt.Println("  GET  /api/v1/health    - Health check")
	fmt.Println("  GET  /api/v1/stats     - Server statistics")
	fmt.Println("  POST /api/v1/analyze   - Analyze resume against a job description (requires API key)")
	fmt.Println("  POST /api/v1/extract   - Extract text from a resume PDF (requires API key)")
	fmt.Println("  POST /api/v1/keywords  - Derive keywords from a job description (requires API key)")

	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: enabled (%d keys); send 'X-API-Key: <key>' or a bearer token\n", len(s.APIKeys))
	} else {
		fmt.Println("API authentication: disabled, endpoints are publicly accessible")
	}

	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %s\n", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Println("Request size limit: none")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		var scopes []string
		if s.RateLimit.ByAPIKey {
			scopes = append(scopes, "per API key")
		}
		if s.RateLimit.ByIP {
			scopes = append(scopes, "per IP")
		}
		if len(scopes) == 0 {
			fmt.Println("Rate limiting: enabled but inactive (set byIp or byApiKey)")
		} else {
			fmt.Printf("Rate limiting: %d requests/min, burst %d (%s)\n",
				s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity, strings.Join(scopes, ", "))
		}
	} else {
		fmt.Println("Rate limiting: disabled")
	}
}
