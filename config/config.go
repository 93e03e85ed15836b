// Package config parses the command-line surface the supervisor accepts
// and validates it into a ready-to-use Config.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// Config holds the fully parsed, validated supervisor configuration.
type Config struct {
	WorkerCount            int
	MaxConnections          int
	PerTransferBufferBytes int
	IPv4BindAddress        string
	IPv6BindAddress        string
	EnableIPv6             bool
	EnableTLS              bool
	HTTPPort               int
	HTTPSPort              int
	DocumentRoot           string
	TLSCertificatePath     string
	TLSPrivateKeyPath      string
}

// ErrHelpRequested is returned by New when -help was passed; the caller
// should exit 0 after flag.Usage has printed.
var ErrHelpRequested = errors.New("config: help requested")

// New parses args (normally os.Args[1:]) into a validated Config.
// Unrecognized flags are rejected by the underlying flag.FlagSet with an
// error, which cmd/staticd turns into a non-zero exit.
func New(args []string) (*Config, error) {
	fs := flag.NewFlagSet("staticd", flag.ContinueOnError)

	cfg := &Config{}
	help := fs.Bool("help", false, "print usage and exit")

	fs.IntVar(&cfg.WorkerCount, "worker-count", 1, "number of I/O worker threads")
	fs.IntVar(&cfg.MaxConnections, "max-connections", 255, "maximum concurrent connections")
	fs.IntVar(&cfg.PerTransferBufferBytes, "per-transfer-buffer-bytes", 1<<20, "per-worker scratch buffer size in bytes")
	fs.StringVar(&cfg.IPv4BindAddress, "ipv4-bind-address", "0.0.0.0", "IPv4 bind address")
	fs.StringVar(&cfg.IPv6BindAddress, "ipv6-bind-address", "::", "IPv6 bind address")
	fs.BoolVar(&cfg.EnableIPv6, "enable-ipv6", false, "also listen on the IPv6 bind address")
	fs.BoolVar(&cfg.EnableTLS, "enable-tls", false, "serve HTTPS in addition to HTTP")
	fs.IntVar(&cfg.HTTPPort, "http-port", 8080, "HTTP listen port")
	fs.IntVar(&cfg.HTTPSPort, "https-port", 8443, "HTTPS listen port")
	fs.StringVar(&cfg.DocumentRoot, "document-root", "./www", "directory served to clients")
	fs.StringVar(&cfg.TLSCertificatePath, "tls-certificate-path", "./fullchain.pem", "PEM certificate chain path")
	fs.StringVar(&cfg.TLSPrivateKeyPath, "tls-private-key-path", "./privkey.pem", "PEM private key path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *help {
		fs.Usage()
		return nil, ErrHelpRequested
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: worker-count must be >= 1, got %d", c.WorkerCount)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("config: max-connections must be >= 1, got %d", c.MaxConnections)
	}
	if c.PerTransferBufferBytes < 1024 {
		return fmt.Errorf("config: per-transfer-buffer-bytes too small: %d", c.PerTransferBufferBytes)
	}
	if c.EnableTLS {
		if _, err := os.Stat(c.TLSCertificatePath); err != nil {
			return fmt.Errorf("config: tls-certificate-path: %w", err)
		}
		if _, err := os.Stat(c.TLSPrivateKeyPath); err != nil {
			return fmt.Errorf("config: tls-private-key-path: %w", err)
		}
	}
	if _, err := os.Stat(c.DocumentRoot); err != nil {
		return fmt.Errorf("config: document-root: %w", err)
	}
	return nil
}
