package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath  = "config.toml"
	DefaultHTTPAddr    = ":7301"
	DefaultGatewayAddr = ":7300"
	DefaultFFmpegPath  = "ffmpeg"

	// Token pair expected by the legacy client's notification handshake.
	// The client ships these baked in, so they are defaults, not secrets.
	DefaultGatewayToken = "3qGT_%78Dtr|&*7ufZoO"
	DefaultClientToken  = "vC.I)Xsfe(;p4YB6E5@y"

	// DefaultRedialDelay is the fixed pause before the gateway re-dials a
	// peer after a transport error.
	DefaultRedialDelay = 5 * time.Second
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Gateway GatewayConfig `toml:"gateway"`
	Matrix  MatrixConfig  `toml:"matrix"`
	Media   MediaConfig   `toml:"media"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// GatewayConfig describes the legacy TCP notification endpoint and the
// fixed handshake token pair.
type GatewayConfig struct {
	Addr            string `toml:"addr"`
	GatewayToken    string `toml:"gateway_token"`
	ClientToken     string `toml:"client_token"`
	RedialDelaySecs int    `toml:"redial_delay_seconds"`
}

// RedialDelay returns the configured redial pause, falling back to the
// default when unset.
func (c GatewayConfig) RedialDelay() time.Duration {
	if c.RedialDelaySecs <= 0 {
		return DefaultRedialDelay
	}
	return time.Duration(c.RedialDelaySecs) * time.Second
}

type MatrixConfig struct {
	Homeserver  string `toml:"homeserver" validate:"required,url"`
	UserID      string `toml:"user_id" validate:"required"`
	AccessToken string `toml:"access_token" validate:"required"`
	DeviceID    string `toml:"device_id"`
	StorePath   string `toml:"store_path"`
}

type MediaConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
	TempDir    string `toml:"temp_dir"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Gateway: GatewayConfig{
			Addr:         DefaultGatewayAddr,
			GatewayToken: DefaultGatewayToken,
			ClientToken:  DefaultClientToken,
		},
		Media: MediaConfig{
			FFmpegPath: DefaultFFmpegPath,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateMatrix checks that the matrix section is complete enough to
// open a backend session. The rest of the config has workable defaults;
// the homeserver credentials do not.
func (c Config) ValidateMatrix() error {
	if err := validate.Struct(c.Matrix); err != nil {
		return fmt.Errorf("matrix config: %w", err)
	}
	return nil
}
