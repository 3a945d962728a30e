package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) SendChat(roomID domain.RoomID, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, string(roomID)+":"+body)
	return nil
}

func TestSendPassesThroughWithoutEcho(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender)
	r.Bind("abcd12")

	require.NoError(t, r.Send("  hi all "))

	assert.Equal(t, []string{"abcd12:hi all"}, sender.sent)
	assert.Empty(t, r.Messages())
}

func TestSendOutsideRoomIsNoop(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender)

	require.NoError(t, r.Send("hello"))
	r.Bind("abcd12")
	require.NoError(t, r.Send("   "))

	assert.Empty(t, sender.sent)
}

func TestSendError(t *testing.T) {
	r := NewRelay(&recordingSender{err: errors.New("closed")})
	r.Bind("abcd12")

	assert.Error(t, r.Send("hello"))
}

func TestAppendKeepsOrderAndReturnsCopies(t *testing.T) {
	r := NewRelay(&recordingSender{})
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	r.Append("Bob", "one")
	r.Append("Alice", "two")

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.ChatMessage{SenderName: "Bob", Body: "one", ReceivedAt: at}, msgs[0])
	assert.Equal(t, "two", msgs[1].Body)

	msgs[0].Body = "changed"
	assert.Equal(t, "one", r.Messages()[0].Body)
}

func TestResetClearsLogAndRoom(t *testing.T) {
	sender := &recordingSender{}
	r := NewRelay(sender)
	r.Bind("abcd12")
	r.Append("Bob", "one")

	r.Reset()

	assert.Empty(t, r.Messages())
	require.NoError(t, r.Send("after"))
	assert.Empty(t, sender.sent)
}
