package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"dev":     zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"prod":    zerolog.ErrorLevel,
		"":        zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitFiltersByLevel(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init("warn", &buf)

	log.Info().Str("module", "test").Msg("hidden")
	log.Warn().Str("module", "test").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "module=test")
}

func TestOpenFile(t *testing.T) {
	w, err := OpenFile("")
	require.NoError(t, err)
	_, err = w.Write([]byte("dropped"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "warpmeet.log")
	w, err = OpenFile(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("kept\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kept\n", string(data))
}
