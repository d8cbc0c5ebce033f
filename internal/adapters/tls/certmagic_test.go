package tls

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jobrunner/stacsync/internal/domain"
)

func TestNewTLSConfigDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := NewTLSConfig(Config{Domains: []string{"stac.example.org"}}, logger)
	if err != nil {
		t.Fatalf("NewTLSConfig() error = %v", err)
	}
	if cfg != nil {
		t.Error("NewTLSConfig() should return nil when disabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"complete", Config{Enabled: true, Domains: []string{"stac.example.org"}, Email: "ops@example.org"}, false},
		{"no domains", Config{Enabled: true, Email: "ops@example.org"}, true},
		{"no email", Config{Enabled: true, Domains: []string{"stac.example.org"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNewTLSConfigRejectsIncomplete(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := NewTLSConfig(Config{Enabled: true}, logger); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("NewTLSConfig() error = %v, want ErrInvalidInput", err)
	}
}

func TestUsesDNSChallenge(t *testing.T) {
	if (Config{}).UsesDNSChallenge() {
		t.Error("empty DNS config should not use DNS-01")
	}
	if !(Config{DNS: DNSConfig{SubscriptionID: "sub"}}).UsesDNSChallenge() {
		t.Error("subscription should enable DNS-01")
	}
}
