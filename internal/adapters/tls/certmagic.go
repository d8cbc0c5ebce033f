// Package tls obtains certificates for the ops server using CertMagic.
package tls

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/jobrunner/stacsync/internal/domain"
)

// Config holds TLS configuration.
type Config struct {
	Enabled  bool
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Validate checks that an enabled configuration can request certificates.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("TLS enabled but no domains specified: %w", domain.ErrInvalidInput)
	}
	if c.Email == "" {
		return fmt.Errorf("TLS enabled but no email specified: %w", domain.ErrInvalidInput)
	}
	return nil
}

// UsesDNSChallenge reports whether certificates are obtained through Azure DNS.
func (c Config) UsesDNSChallenge() bool {
	return c.DNS.SubscriptionID != ""
}

// NewTLSConfig returns a TLS configuration whose certificates are managed by
// CertMagic in the background. It returns nil when TLS is disabled.
func NewTLSConfig(cfg Config, logger *slog.Logger) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Configure CertMagic
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = cfg.Email

	if cfg.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	if cfg.UsesDNSChallenge() {
		provider := &azure.Provider{
			SubscriptionId:    cfg.DNS.SubscriptionID,
			ResourceGroupName: cfg.DNS.ResourceGroupName,
			ClientId:          cfg.DNS.ClientID, // Empty = System Assigned Managed Identity
		}
		certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: provider,
			},
		}
	}

	logger.Info("managing certificates",
		"domains", cfg.Domains,
		"staging", cfg.Staging,
		"dns_challenge", cfg.UsesDNSChallenge(),
	)

	tlsConfig, err := certmagic.TLS(cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("configuring TLS: %w", err)
	}
	return tlsConfig, nil
}
