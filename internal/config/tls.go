package config

import (
	"crypto/tls"
	"fmt"
	"os"
)

// LoadTLS builds the listener's TLS context from a certificate/key pair.
// It returns (nil, nil) when either path is unset or the file does not
// exist: the caller is expected to log the fallback and serve plaintext.
// Material that exists but does not parse is reported as an error; the
// listener degrades to plaintext in that case too.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	for _, f := range []string{certFile, keyFile} {
		if _, err := os.Stat(f); err != nil {
			return nil, nil
		}
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
