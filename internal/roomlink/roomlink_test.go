package roomlink

import (
	"regexp"
	"strings"
	"testing"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]{6}$`)
	seen := make(map[domain.RoomID]bool)
	for i := 0; i < 50; i++ {
		id := Generate()
		assert.Regexp(t, pattern, string(id))
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestMemorable(t *testing.T) {
	id := Memorable()
	words := strings.Split(string(id), "-")
	require.Len(t, words, 4)

	_, err := Parse(string(id))
	assert.NoError(t, err)
}

func TestPickIsDistinct(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := pick(6, 4)
		seen := map[int]bool{}
		for _, v := range got {
			assert.False(t, seen[v])
			assert.Less(t, v, 6)
			seen[v] = true
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want domain.RoomID
	}{
		{"abcd12", "abcd12"},
		{"  abcd12 ", "abcd12"},
		{"https://warpmeet.qzz.io/?room=abcd12", "abcd12"},
		{"warpmeet.qzz.io/?room=abcd12&x=1", "abcd12"},
		{"https://warpmeet.qzz.io/r/kitten-waffle-stardust-happy", "kitten-waffle-stardust-happy"},
		{"https://warpmeet.qzz.io/r/abcd12/", "abcd12"},
		{"?room=xyz", "xyz"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"https://warpmeet.qzz.io/",
		"https://warpmeet.qzz.io/r/",
		"https://warpmeet.qzz.io/?room=bad%20id",
		"bad id",
		"-leading",
	} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestLink(t *testing.T) {
	link := Link("meet.example", "abcd12")
	assert.Equal(t, "https://meet.example/?room=abcd12", link)

	id, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("abcd12"), id)
}
