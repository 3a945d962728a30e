package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
	assert.Equal(t, "2.00 MB", FormatSize(2*1024*1024))
	assert.Equal(t, "1.00 GB", FormatSize(1024*1024*1024))
}

func TestFormatTimeDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatTimeDuration(-time.Second))
	assert.Equal(t, "42s", FormatTimeDuration(42*time.Second))
	assert.Equal(t, "3m 5s", FormatTimeDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "1h 0m 7s", FormatTimeDuration(time.Hour+7*time.Second))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcdefg...", TruncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "héllo", TruncateString("héllo", 5))
}
