package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Gateway.Addr != DefaultGatewayAddr {
		t.Fatalf("gateway addr = %q", cfg.Gateway.Addr)
	}
	if cfg.Gateway.GatewayToken != DefaultGatewayToken || cfg.Gateway.ClientToken != DefaultClientToken {
		t.Fatalf("token defaults not applied")
	}
	if cfg.Media.FFmpegPath != DefaultFFmpegPath {
		t.Fatalf("ffmpeg path = %q", cfg.Media.FFmpegPath)
	}
	if cfg.Gateway.RedialDelay() != DefaultRedialDelay {
		t.Fatalf("redial delay = %v", cfg.Gateway.RedialDelay())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
addr = ":9301"

[gateway]
addr = ":9300"
gateway_token = "gw"
client_token = "cl"
redial_delay_seconds = 2

[matrix]
homeserver = "https://matrix.example.org"
user_id = "@bridge:example.org"
access_token = "syt_secret"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9301" {
		t.Fatalf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Gateway.GatewayToken != "gw" || cfg.Gateway.ClientToken != "cl" {
		t.Fatalf("tokens not overridden")
	}
	if cfg.Gateway.RedialDelay() != 2*time.Second {
		t.Fatalf("redial delay = %v", cfg.Gateway.RedialDelay())
	}
	if cfg.Matrix.Homeserver != "https://matrix.example.org" {
		t.Fatalf("homeserver = %q", cfg.Matrix.Homeserver)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Media.FFmpegPath != DefaultFFmpegPath {
		t.Fatalf("ffmpeg path = %q", cfg.Media.FFmpegPath)
	}
}
