package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateCapture(t *testing.T) {
	ivf := writeFile(t, "cam.ivf", []byte("DKIF\x00\x00 \x00VP80"))
	ogg := writeFile(t, "mic.ogg", []byte("OggS\x00\x02"))

	info, err := ValidateCapture(ivf)
	require.NoError(t, err)
	assert.Equal(t, ContainerIVF, info.Container)
	assert.Equal(t, "cam.ivf", info.Name)

	info, err = ValidateCapture(ogg)
	require.NoError(t, err)
	assert.Equal(t, ContainerOgg, info.Container)
}

func TestValidateCaptureRejects(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.ivf"), "does not exist"},
		{"empty", writeFile(t, "empty.ivf", nil), "file is empty"},
		{"extension", writeFile(t, "cam.mp4", []byte("DKIF")), "unsupported capture format"},
		{"magic", writeFile(t, "cam.ivf", []byte("OggS....")), "not a valid ivf file"},
		{"directory", func() string {
			dir := filepath.Join(t.TempDir(), "dir.ogg")
			require.NoError(t, os.Mkdir(dir, 0o755))
			return dir
		}(), "is a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCapture(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSourcesCollectsErrors(t *testing.T) {
	ok := writeFile(t, "mic.ogg", []byte("OggS"))

	err := ValidateSources(map[string]string{
		"microphone": ok,
		"camera":     "missing.ivf",
		"screen":     "shot.png",
		"unset":      "",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera")
	assert.Contains(t, err.Error(), "screen")
	assert.NotContains(t, err.Error(), "microphone")
	assert.NotContains(t, err.Error(), "unset")
}
