package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidCACert indicates a CA file with no usable PEM certificate.
var ErrInvalidCACert = errors.New("no certificates found in CA file")

// TLSConfig builds a client TLS configuration from the configured files.
// It returns nil when no TLS file is configured.
func (c *Config) TLSConfig() (*tls.Config, error) {
	if !c.TLS.Enabled() {
		return nil, nil //nolint:nilnil // nil config means plain connections
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.TLS.Cert != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.Cert, c.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("loading tls cert/key: %w", err)
		}

		cfg.Certificates = []tls.Certificate{cert}
	}

	if c.TLS.CACert != "" {
		pem, err := os.ReadFile(c.TLS.CACert)
		if err != nil {
			return nil, fmt.Errorf("loading tls ca_cert: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCACert, c.TLS.CACert)
		}

		cfg.RootCAs = pool
	}

	return cfg, nil
}
