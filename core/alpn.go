package core

import (
	"crypto/tls"
	"fmt"
)

// LoadTLSConfig loads the certificate chain and private key from PEM files
// and builds the TLS server config. tls.LoadX509KeyPair itself validates
// that the key matches the certificate, failing if they don't pair.
//
// NextProtos is pinned to "http/1.1" only: unlike the HTTP/2-capable ALPN
// negotiation the teacher wires up for its multiplexed handler, this
// engine speaks HTTP/1.1 exclusively, so h2 is deliberately never
// advertised rather than negotiated and then refused mid-connection.
func LoadTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("core: loading TLS keypair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}, nil
}
