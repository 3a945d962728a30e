package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/roomlink"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default configuration values (production)
const (
	DefaultAppID      = "warpmeet"
	DefaultBackendURL = "https://warpmeet.qzz.io"
	DefaultWebDomain  = "warpmeet.qzz.io"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultTURN       = "turn:warpmeet.qzz.io"
	DefaultTURNUser   = "warpmeet"
	DefaultTURNPass   = "warpmeet-secret"
	DefaultListenAddr = ":8080"
	DefaultTokenTTL   = 24 * time.Hour
)

// EnvPrefix prefixes every environment override, e.g. WARPMEET_BACKEND_URL.
const EnvPrefix = "WARPMEET"

// legacyEnv maps keys to the unprefixed variables the file-transfer CLI used.
var legacyEnv = map[string]string{
	"web_domain":  "DOMAIN",
	"stun_server": "STUN_SERVER",
	"turn_server": "TURN_SERVER",
	"turn_user":   "TURN_USERNAME",
	"turn_pass":   "TURN_PASSWORD",
	"log_level":   "LOG_LEVEL",
}

// Config holds application configuration
type Config struct {
	AppID        string `mapstructure:"app_id"`
	BackendURL   string `mapstructure:"backend_url"`
	SignalingURL string `mapstructure:"signaling_url"`
	MediaURL     string `mapstructure:"media_url"`
	WebDomain    string `mapstructure:"web_domain"`

	// ICE servers for WebRTC
	STUNServer string `mapstructure:"stun_server"`
	TURNServer string `mapstructure:"turn_server"`
	TURNUser   string `mapstructure:"turn_user"`
	TURNPass   string `mapstructure:"turn_pass"`
	ForceRelay bool   `mapstructure:"force_relay"`

	// Capture sources
	MicFile    string `mapstructure:"mic_file"`
	CameraFile string `mapstructure:"camera_file"`
	ScreenFile string `mapstructure:"screen_file"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Reference server
	ListenAddr string        `mapstructure:"listen_addr"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Mode       string        `mapstructure:"mode"`

	// ConfigFile is the file values were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// Load reads configuration with the following priority:
// 1. CLI flags (only those explicitly set) - highest priority
// 2. Environment variables (WARPMEET_*, then the legacy names)
// 3. Config file (warpmeet.yaml)
// 4. Hardcoded defaults - lowest priority
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("warpmeet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "warpmeet"))
	}
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	if cfg.SignalingURL == "" {
		u, err := deriveURL(cfg.BackendURL, "/ws")
		if err != nil {
			return nil, err
		}
		cfg.SignalingURL = u
	}
	if cfg.MediaURL == "" {
		u, err := deriveURL(cfg.BackendURL, "/sfu")
		if err != nil {
			return nil, err
		}
		cfg.MediaURL = u
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_id", DefaultAppID)
	v.SetDefault("backend_url", DefaultBackendURL)
	v.SetDefault("signaling_url", "")
	v.SetDefault("media_url", "")
	v.SetDefault("web_domain", DefaultWebDomain)
	v.SetDefault("stun_server", DefaultSTUN)
	v.SetDefault("turn_server", DefaultTURN)
	v.SetDefault("turn_user", DefaultTURNUser)
	v.SetDefault("turn_pass", DefaultTURNPass)
	v.SetDefault("force_relay", false)
	v.SetDefault("mic_file", "")
	v.SetDefault("camera_file", "")
	v.SetDefault("screen_file", "")
	v.SetDefault("log_level", "error")
	v.SetDefault("log_file", "")
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", DefaultTokenTTL)
	v.SetDefault("mode", "release")
}

// deriveURL turns an http(s) backend base into the ws(s) endpoint at path.
func deriveURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid backend_url %q", base)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// RoomLink returns the webapp URL for a room ID
func (c *Config) RoomLink(roomID string) string {
	return roomlink.Link(c.WebDomain, domain.RoomID(roomID))
}

// STUNServers returns STUN server URLs as strings
func (c *Config) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// TURNCredentials returns TURN username and password
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// CaptureSources returns the configured capture files keyed by source name.
func (c *Config) CaptureSources() map[string]string {
	return map[string]string{
		"microphone": c.MicFile,
		"camera":     c.CameraFile,
		"screen":     c.ScreenFile,
	}
}
