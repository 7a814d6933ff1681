//file: internal/relp/tls.go

package relp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Priority profiles accepted by SetPriority. They map the protocol's
// priority-string directive onto TLS policy: minimum version and, for the
// strict profiles, a reduced cipher set.
const (
	PriorityNormal    = "NORMAL"
	PrioritySecure128 = "SECURE128"
	PrioritySecure256 = "SECURE256"
)

// buildTLSConfig assembles the listener's server-side TLS configuration
// from its certificate files, priority profile and DH strength.
func (l *Listener) buildTLSConfig() (*tls.Config, error) {
	if l.certFile == "" || l.keyFile == "" {
		return nil, fmt.Errorf("tls requires a certificate and key file")
	}
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	conf := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if l.caFile != "" {
		caCert, err := os.ReadFile(l.caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse client CA certificate")
		}
		conf.ClientCAs = pool
		conf.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if err := applyPriority(conf, l.priority); err != nil {
		return nil, err
	}
	applyDHBits(conf, l.dhBits)
	return conf, nil
}

// applyPriority maps a priority directive onto the TLS config. A nil
// directive keeps engine defaults; an unknown one is a configuration error.
func applyPriority(conf *tls.Config, priority *string) error {
	if priority == nil {
		return nil
	}
	switch *priority {
	case PriorityNormal:
		conf.MinVersion = tls.VersionTLS12
	case PrioritySecure128:
		conf.MinVersion = tls.VersionTLS12
		conf.CipherSuites = []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		}
	case PrioritySecure256:
		conf.MinVersion = tls.VersionTLS13
	default:
		return fmt.Errorf("unknown TLS priority string %q", *priority)
	}
	return nil
}

// applyDHBits maps the key-exchange strength onto curve preferences. Zero
// keeps defaults.
func applyDHBits(conf *tls.Config, bits int) {
	switch {
	case bits <= 0:
		// engine default
	case bits <= 2048:
		conf.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	case bits <= 4096:
		conf.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP384}
	default:
		conf.CurvePreferences = []tls.CurveID{tls.CurveP521, tls.CurveP384}
	}
}
