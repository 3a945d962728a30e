// Package roomlink generates room ids and extracts them from user input.
package roomlink

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/BioHazard786/Warpmeet/internal/domain"
)

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 6
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Generate returns a random six character room id such as "k3v9qa".
func Generate() domain.RoomID {
	var b strings.Builder
	for i := 0; i < idLength; i++ {
		b.WriteByte(idAlphabet[randomIndex(len(idAlphabet))])
	}
	return domain.RoomID(b.String())
}

// Memorable returns a room id made of four words from distinct lists,
// e.g. "kitten-waffle-stardust-happy".
func Memorable() domain.RoomID {
	lists := [][]string{animals, dishes, names, randomWords, adjectives, extras}

	words := make([]string, 0, 4)
	for _, i := range pick(len(lists), 4) {
		list := lists[i]
		words = append(words, list[randomIndex(len(list))])
	}
	return domain.RoomID(strings.Join(words, "-"))
}

// pick returns k distinct indexes below n in random order.
func pick(n, k int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + randomIndex(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random index: %v", err))
	}
	return int(n.Int64())
}

// Parse accepts a bare room id or a room link in either the
// "https://host/?room=<id>" or the "https://host/r/<id>" form.
func Parse(input string) (domain.RoomID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, "/") || strings.Contains(input, "?") {
		return fromURL(input)
	}
	return validate(input)
}

func fromURL(raw string) (domain.RoomID, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse room link: %w", err)
	}

	if room := u.Query().Get("room"); room != "" {
		return validate(room)
	}

	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return validate(parts[i+1])
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", raw)
}

func validate(id string) (domain.RoomID, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("invalid room ID %q", id)
	}
	return domain.RoomID(id), nil
}

// Link returns the web link for roomID on domain.
func Link(domainName string, roomID domain.RoomID) string {
	u := url.URL{
		Scheme:   "https",
		Host:     domainName,
		Path:     "/",
		RawQuery: url.Values{"room": {string(roomID)}}.Encode(),
	}
	return u.String()
}
