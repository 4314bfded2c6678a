package config

import (
	"os"
	"testing"
	"time"
)

func baseAppConfig() *AppConfig {
	return &AppConfig{
		ListenerAddr:  "localhost:9982",
		LogFormat:     "text",
		LogLevel:      "info",
		SocketTimeout: 30 * time.Second,
		ChunkSize:     DefaultChunkSize,
	}
}

func TestAppConfigValidateOK(t *testing.T) {
	if err := baseAppConfig().validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestAppConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*AppConfig)
	}{
		{"badFormat", func(c *AppConfig) { c.LogFormat = "xx" }},
		{"badLevel", func(c *AppConfig) { c.LogLevel = "nope" }},
		{"noListenerNoMdns", func(c *AppConfig) { c.ListenerAddr = "" }},
		{"badTimeout", func(c *AppConfig) { c.SocketTimeout = 0 }},
		{"badChunkSize", func(c *AppConfig) { c.ChunkSize = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := baseAppConfig()
			tc.mod(c)
			if err := c.validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestAppConfigValidateMdnsWithoutListener(t *testing.T) {
	c := baseAppConfig()
	c.ListenerAddr = ""
	c.MdnsEnable = true
	if err := c.validate(); err != nil {
		t.Fatalf("mdns-enabled config without listener should be valid: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	base := baseAppConfig()

	os.Setenv("HTSPVR_SOCKET_TIMEOUT", "10s")
	os.Setenv("HTSPVR_MDNS_ENABLE", "true")
	os.Setenv("HTSPVR_CHUNK_SIZE", "65536")
	t.Cleanup(func() {
		os.Unsetenv("HTSPVR_SOCKET_TIMEOUT")
		os.Unsetenv("HTSPVR_MDNS_ENABLE")
		os.Unsetenv("HTSPVR_CHUNK_SIZE")
	})

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.SocketTimeout != 10*time.Second {
		t.Fatalf("expected socket timeout override, got %v", base.SocketTimeout)
	}
	if !base.MdnsEnable {
		t.Fatalf("expected mdns-enable override")
	}
	if base.ChunkSize != 65536 {
		t.Fatalf("expected chunk-size override, got %d", base.ChunkSize)
	}
}

func TestApplyEnvOverridesFlagPrecedence(t *testing.T) {
	base := baseAppConfig()
	os.Setenv("HTSPVR_SOCKET_TIMEOUT", "10s")
	t.Cleanup(func() { os.Unsetenv("HTSPVR_SOCKET_TIMEOUT") })

	if err := applyEnvOverrides(base, map[string]struct{}{"socket-timeout": {}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.SocketTimeout != 30*time.Second {
		t.Fatalf("explicitly set flag must win over env, got %v", base.SocketTimeout)
	}
}
