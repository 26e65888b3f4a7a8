package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/openbill/arledger/internal/infrastructure/config"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{
		HTTPPort:         "9090",
		HTTPReadTimeout:  15 * time.Second,
		HTTPWriteTimeout: 20 * time.Second,
		HTTPIdleTimeout:  time.Minute,
	}

	server := newHTTPServer(cfg, http.NewServeMux())

	if server.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %s", server.Addr)
	}
	if server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected read timeout 15s, got %s", server.ReadTimeout)
	}
	if server.WriteTimeout != 20*time.Second {
		t.Fatalf("expected write timeout 20s, got %s", server.WriteTimeout)
	}
	if server.IdleTimeout != time.Minute {
		t.Fatalf("expected idle timeout 1m, got %s", server.IdleTimeout)
	}
}
