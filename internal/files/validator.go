package files

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Container is a supported capture file format.
type Container int

const (
	// ContainerIVF holds VP8 frames (camera and screen sources).
	ContainerIVF Container = iota
	// ContainerOgg holds Opus pages (microphone source).
	ContainerOgg
)

func (c Container) String() string {
	switch c {
	case ContainerIVF:
		return "ivf"
	case ContainerOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

var magic = map[Container][]byte{
	ContainerIVF: []byte("DKIF"),
	ContainerOgg: []byte("OggS"),
}

// FileInfo holds information about a capture source file
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	// Size is the file size in bytes
	Size int64

	Container Container
}

// ValidateSources checks every configured source and reports all problems at
// once. Empty paths are skipped.
func ValidateSources(sources map[string]string) error {
	var errors []string
	for label, path := range sources {
		if path == "" {
			continue
		}
		if _, err := ValidateCapture(path); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", label, err))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("capture source validation failed:\n  - %s", joinErrors(errors))
	}
	return nil
}

// ValidateCapture checks that path is a readable, non-empty IVF or Ogg file.
// The container is taken from the extension and confirmed by the file magic.
func ValidateCapture(path string) (FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	container, err := containerFor(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: is a directory", path)
	}
	if stat.Size() == 0 {
		return FileInfo{}, fmt.Errorf("%s: file is empty", path)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	defer file.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(file, head); err != nil || !bytes.Equal(head, magic[container]) {
		return FileInfo{}, fmt.Errorf("%s: not a valid %s file", path, container)
	}

	return FileInfo{
		Path:      absPath,
		Name:      filepath.Base(absPath),
		Size:      stat.Size(),
		Container: container,
	}, nil
}

func containerFor(path string) (Container, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ivf":
		return ContainerIVF, nil
	case ".ogg", ".opus":
		return ContainerOgg, nil
	default:
		return 0, fmt.Errorf("unsupported capture format %q (want .ivf or .ogg)", filepath.Ext(path))
	}
}

// joinErrors joins multiple error messages with newlines
func joinErrors(errors []string) string {
	var result strings.Builder
	for i, err := range errors {
		if i > 0 {
			result.WriteString("\n  - ")
		}
		result.WriteString(err)
	}
	return result.String()
}
