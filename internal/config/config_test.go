package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range []string{"DOMAIN", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD", "LOG_LEVEL"} {
		t.Setenv(env, "")
	}
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("backend-url", "", "")
	fs.String("stun-server", "", "")
	fs.Bool("force-relay", false, "")
	fs.Bool("headless", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(testFlags())
	require.NoError(t, err)

	assert.Equal(t, DefaultAppID, cfg.AppID)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, "wss://warpmeet.qzz.io/ws", cfg.SignalingURL)
	assert.Equal(t, "wss://warpmeet.qzz.io/sfu", cfg.MediaURL)
	assert.Equal(t, DefaultSTUN, cfg.STUNServer)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, DefaultTokenTTL, cfg.TokenTTL)
	assert.False(t, cfg.ForceRelay)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	file := filepath.Join(t.TempDir(), "warpmeet.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"backend_url: http://file.example:9000/\n"+
			"stun_server: stun:file.example\n"+
			"token_ttl: 90m\n"+
			"web_domain: file.example\n",
	), 0o644))
	t.Setenv("WARPMEET_CONFIG", file)
	t.Setenv("WARPMEET_STUN_SERVER", "stun:env.example")
	t.Setenv("DOMAIN", "legacy.example")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--stun-server", "stun:flag.example", "--force-relay"}))

	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, file, cfg.ConfigFile)
	assert.Equal(t, "http://file.example:9000", cfg.BackendURL, "file beats default, trailing slash trimmed")
	assert.Equal(t, "ws://file.example:9000/ws", cfg.SignalingURL)
	assert.Equal(t, "stun:flag.example", cfg.STUNServer, "flag beats env and file")
	assert.Equal(t, "legacy.example", cfg.WebDomain, "legacy env beats file")
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.ForceRelay)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("TURN_SERVER", "turn:legacy.example")
	t.Setenv("WARPMEET_TURN_SERVER", "turn:new.example")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "turn:new.example", cfg.TURNServer)
}

func TestLoadInvalidBackend(t *testing.T) {
	isolate(t)
	t.Setenv("WARPMEET_BACKEND_URL", "not a url")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backend_url")
}

func TestAccessors(t *testing.T) {
	cfg := &Config{
		WebDomain:  "meet.example",
		STUNServer: "stun:stun.example:19302",
		TURNServer: "turn:relay.example",
		TURNUser:   "u",
		TURNPass:   "p",
	}

	assert.Equal(t, "https://meet.example/?room=abcd12", cfg.RoomLink("abcd12"))
	assert.Equal(t, []string{"stun:stun.example:19302"}, cfg.STUNServers())
	assert.Equal(t, []string{
		"turn:relay.example:3478?transport=udp",
		"turn:relay.example:3478?transport=tcp",
		"turns:relay.example:5349?transport=tcp",
	}, cfg.TURNServers())
	user, pass := cfg.TURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)

	cfg.TURNServer = ""
	assert.Nil(t, cfg.TURNServers())
}
