package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender delivers chat messages to the room.
type Sender interface {
	SendChat(roomID domain.RoomID, body string) error
}

// Relay keeps the chat log of the current room and forwards outgoing
// messages. Sent messages are not echoed locally; they show up when the
// server broadcasts them back.
type Relay struct {
	sender Sender
	now    func() time.Time
	log    zerolog.Logger

	mu       sync.Mutex
	room     domain.RoomID
	messages []domain.ChatMessage
}

func NewRelay(sender Sender) *Relay {
	return &Relay{
		sender: sender,
		now:    time.Now,
		log:    log.With().Str("module", "chat").Logger(),
	}
}

// Bind attaches the relay to a room.
func (r *Relay) Bind(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = roomID
}

// Reset detaches the relay and clears the log.
func (r *Relay) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = ""
	r.messages = nil
}

// Append records a received message.
func (r *Relay) Append(senderName, body string) domain.ChatMessage {
	msg := domain.ChatMessage{SenderName: senderName, Body: body, ReceivedAt: r.now()}

	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return msg
}

// Messages returns a copy of the log in arrival order.
func (r *Relay) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return nil
	}
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Send forwards body to the room. Blank messages and calls made outside a
// room are dropped.
func (r *Relay) Send(body string) error {
	body = strings.TrimSpace(body)

	r.mu.Lock()
	room := r.room
	r.mu.Unlock()

	if body == "" || room == "" {
		return nil
	}
	if err := r.sender.SendChat(room, body); err != nil {
		r.log.Warn().Err(err).Msg("send chat")
		return err
	}
	return nil
}
