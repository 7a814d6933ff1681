//file: internal/pipeline/tls.go

package pipeline

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"relp-ingest/config"
	"relp-ingest/internal/logger"
)

// createClientTLSConfig builds the client-side TLS configuration for the
// NATS connection.
func createClientTLSConfig(cfg *config.NATSConfig, log *logger.Logger) (*tls.Config, error) {
	log.Info("enabling TLS for NATS connection", "insecure", cfg.TLS.Insecure)

	tlsConf := &tls.Config{
		InsecureSkipVerify: cfg.TLS.Insecure,
	}

	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load NATS TLS client certificate: %w", err)
		}
		tlsConf.Certificates = []tls.Certificate{cert}
		log.Info("loaded NATS TLS client certificate", "certFile", cfg.TLS.CertFile)
	}

	if cfg.TLS.CAFile != "" {
		caCert, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read NATS CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse NATS CA certificate")
		}
		tlsConf.RootCAs = pool
		log.Info("loaded NATS TLS CA certificate", "caFile", cfg.TLS.CAFile)
	}

	return tlsConf, nil
}
