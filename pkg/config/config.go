package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/silviot/unirtc/pkg/rtc"
	"github.com/silviot/unirtc/pkg/signal"
)

// Config is read from an optional YAML file, then UNIRTC_* environment
// variables, then the defaults below.
type Config struct {
	Env      string       `yaml:"env" env:"UNIRTC_ENV" env-default:"local" env-description:"local, dev or prod; picks the log format"`
	LogLevel string       `yaml:"log_level" env:"UNIRTC_LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	PionLog  string       `yaml:"pion_log" env:"UNIRTC_PION_LOG" env-default:"warn,ice=off,mdns=off" env-description:"pion log filter, e.g. warn,pc=debug"`
	HTTP     HTTPConfig   `yaml:"http"`
	Signal   SignalConfig `yaml:"signal"`
	WebRTC   WebRTCConfig `yaml:"webrtc"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"UNIRTC_HTTP_ADDRESS" env-default:":8080" env-description:"hub listen address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"UNIRTC_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type SignalConfig struct {
	// URL is the hub a demo client joins.
	URL            string        `yaml:"url" env:"UNIRTC_SIGNAL_URL" env-default:"http://127.0.0.1:8080" env-description:"signaling hub base URL"`
	Codec          string        `yaml:"codec" env:"UNIRTC_SIGNAL_CODEC" env-default:"json" env-description:"json or cbor"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"UNIRTC_ALLOWED_ORIGINS" env-separator:"," env-description:"browser origins allowed by the hub (empty allows any)"`
	PingInterval   time.Duration `yaml:"ping_interval" env:"UNIRTC_PING_INTERVAL" env-default:"25s"`
	MaxRoomSize    int           `yaml:"max_room_size" env:"UNIRTC_MAX_ROOM_SIZE" env-default:"0"`
}

type WebRTCConfig struct {
	STUNServers     []string     `yaml:"stun_servers" env:"UNIRTC_STUN_SERVERS" env-separator:"," env-description:"STUN server URLs"`
	TURNServers     []TURNServer `yaml:"turn_servers"`
	TransportPolicy string       `yaml:"transport_policy" env:"UNIRTC_ICE_TRANSPORT_POLICY" env-default:"all" env-description:"all or relay"`
	DataChannel     string       `yaml:"data_channel" env:"UNIRTC_DATA_CHANNEL" env-default:"data" env-description:"label of the channel opened to each peer"`
}

type TURNServer struct {
	URLs           []string `yaml:"urls"`
	Username       string   `yaml:"username"`
	Credential     string   `yaml:"credential"`
	CredentialType string   `yaml:"credential_type"`
}

const defaultSTUNServer = "stun:stun.l.google.com:19302"

// Load reads path (if non-empty) and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Usage returns a help printer listing the environment variables, run after
// extra (typically the flag set's own usage).
func Usage(header string, extra func()) func() {
	var cfg Config
	return cleanenv.Usage(&cfg, &header, extra)
}

func (c *Config) setDefaults() {
	if len(c.WebRTC.STUNServers) == 0 && len(c.WebRTC.TURNServers) == 0 {
		c.WebRTC.STUNServers = []string{defaultSTUNServer}
	}
	if c.Signal.Codec == "" {
		c.Signal.Codec = "json"
	}
}

// RTCConfiguration builds the peer connection configuration. STUN servers
// share one entry; each TURN server gets its own.
func (c *Config) RTCConfiguration() (rtc.Configuration, error) {
	policy, err := rtc.ParseIceTransportPolicy(c.WebRTC.TransportPolicy)
	if err != nil {
		return rtc.Configuration{}, err
	}
	out := rtc.Configuration{IceTransportPolicy: policy}

	if len(c.WebRTC.STUNServers) > 0 {
		out.IceServers = append(out.IceServers, rtc.IceServer{URLs: append([]string(nil), c.WebRTC.STUNServers...)})
	}
	for i, turn := range c.WebRTC.TURNServers {
		if len(turn.URLs) == 0 {
			return rtc.Configuration{}, fmt.Errorf("turn server %d has no urls", i)
		}
		credType, err := rtc.ParseIceCredentialType(turn.CredentialType)
		if err != nil {
			return rtc.Configuration{}, fmt.Errorf("turn server %d: %w", i, err)
		}
		server := rtc.IceServer{URLs: append([]string(nil), turn.URLs...), CredentialType: credType}
		if turn.Username != "" {
			server.Username = &turn.Username
		}
		if turn.Credential != "" {
			server.Credential = &turn.Credential
		}
		out.IceServers = append(out.IceServers, server)
	}
	return out, nil
}

// SignalCodec returns the codec named by Signal.Codec.
func (c *Config) SignalCodec() (signal.Codec, error) {
	switch strings.ToLower(c.Signal.Codec) {
	case "json":
		return signal.JSONCodec, nil
	case "cbor":
		return signal.CBORCodec, nil
	}
	return nil, fmt.Errorf("unknown signal codec %q", c.Signal.Codec)
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the process logger: readable text locally, JSON
// elsewhere.
func SetupLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	switch env {
	case envDev, envProd:
		return slog.New(slog.NewJSONHandler(w, opts))
	case envLocal:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewTextHandler(w, opts)).With("env", env)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
