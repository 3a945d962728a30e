package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeChange(t *testing.T) {
	prev := domain.Snapshot{
		Phase:  domain.PhaseActive,
		Local:  domain.JoinedMediaState(),
		Roster: []domain.RosterEntry{{ID: 1, DisplayName: "Alice"}, {ID: 2, DisplayName: "Bob"}},
		HostID: 1,
	}
	next := prev
	next.Roster = []domain.RosterEntry{{ID: 2, DisplayName: "Bob"}, {ID: 3, DisplayName: "Carol"}}
	next.HostID = 2
	next.Chat = []domain.ChatMessage{{SenderName: "Carol", Body: "hey"}}

	lines := describeChange(prev, next)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Carol joined")
	assert.Contains(t, lines[1], "Alice left")
	assert.Contains(t, lines[2], "host is now Bob")
	assert.Contains(t, lines[3], "Carol: hey")
}

func TestDescribeChangeReportsLocalMediaAndNotice(t *testing.T) {
	prev := domain.Snapshot{Phase: domain.PhaseActive, Local: domain.JoinedMediaState()}
	next := prev
	next.Local.MicEnabled = false
	next.Notice = "Screen sharing ended"

	lines := describeChange(prev, next)
	require.Len(t, lines, 2)
	assert.Equal(t, "mic=false camera=true screen=false video=camera", lines[0])
	assert.Equal(t, "Screen sharing ended", lines[1])

	assert.Empty(t, describeChange(next, next))
}

func TestValidateSources(t *testing.T) {
	dir := t.TempDir()
	mic := filepath.Join(dir, "mic.ogg")
	require.NoError(t, os.WriteFile(mic, []byte("OggS rest of page"), 0o644))

	infos, err := validateSources(map[string]string{"microphone": mic, "camera": ""})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, files.ContainerOgg, infos["microphone"].Container)

	_, err = validateSources(map[string]string{"camera": filepath.Join(dir, "missing.ivf")})
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	t.Setenv("USER", "tester")
	flagName = ""
	assert.Equal(t, "tester", displayName())

	flagName = "Alice"
	t.Cleanup(func() { flagName = "" })
	assert.Equal(t, "Alice", displayName())
}
