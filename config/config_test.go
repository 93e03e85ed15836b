package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := New([]string{"-document-root", root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Errorf("WorkerCount = %d, want 1", cfg.WorkerCount)
	}
	if cfg.MaxConnections != 255 {
		t.Errorf("MaxConnections = %d, want 255", cfg.MaxConnections)
	}
	if cfg.PerTransferBufferBytes != 1<<20 {
		t.Errorf("PerTransferBufferBytes = %d, want %d", cfg.PerTransferBufferBytes, 1<<20)
	}
	if cfg.IPv4BindAddress != "0.0.0.0" || cfg.IPv6BindAddress != "::" {
		t.Errorf("bind addresses = %q/%q, want defaults", cfg.IPv4BindAddress, cfg.IPv6BindAddress)
	}
	if cfg.HTTPPort != 8080 || cfg.HTTPSPort != 8443 {
		t.Errorf("ports = %d/%d, want 8080/8443", cfg.HTTPPort, cfg.HTTPSPort)
	}
	if cfg.EnableIPv6 || cfg.EnableTLS {
		t.Errorf("EnableIPv6/EnableTLS should default false")
	}
}

func TestNewOverridesFromArgs(t *testing.T) {
	root := t.TempDir()
	cfg, err := New([]string{
		"-worker-count", "4",
		"-max-connections", "1024",
		"-document-root", root,
		"-enable-ipv6",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.WorkerCount != 4 || cfg.MaxConnections != 1024 || !cfg.EnableIPv6 {
		t.Fatalf("cfg = %+v, want overridden values applied", cfg)
	}
}

func TestNewHelpReturnsSentinel(t *testing.T) {
	_, err := New([]string{"-help"})
	if !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("err = %v, want ErrHelpRequested", err)
	}
}

func TestNewRejectsUnknownFlag(t *testing.T) {
	if _, err := New([]string{"-not-a-real-flag"}); err == nil {
		t.Fatalf("expected an error for an unrecognized flag")
	}
}

func TestValidateRejectsBadWorkerCount(t *testing.T) {
	root := t.TempDir()
	if _, err := New([]string{"-worker-count", "0", "-document-root", root}); err == nil {
		t.Fatalf("expected validation error for worker-count 0")
	}
}

func TestValidateRejectsMissingDocumentRoot(t *testing.T) {
	if _, err := New([]string{"-document-root", filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected validation error for a missing document root")
	}
}

func TestValidateRequiresTLSFilesWhenEnabled(t *testing.T) {
	root := t.TempDir()
	if _, err := New([]string{"-document-root", root, "-enable-tls"}); err == nil {
		t.Fatalf("expected validation error for missing TLS cert/key")
	}
}

func TestValidateAcceptsTLSFilesThatExist(t *testing.T) {
	root := t.TempDir()
	cert := filepath.Join(root, "fullchain.pem")
	key := filepath.Join(root, "privkey.pem")
	if err := os.WriteFile(cert, []byte("cert"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(key, []byte("key"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New([]string{
		"-document-root", root,
		"-enable-tls",
		"-tls-certificate-path", cert,
		"-tls-private-key-path", key,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
}
