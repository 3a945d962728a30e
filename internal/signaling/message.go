package signaling

import "encoding/json"

// Message is the envelope of every websocket message between client and server.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeJoinRoom   = "join-room"
	MessageTypeChat       = "chat-message"
	MessageTypeKickUser   = "kick-user"
	MessageTypeEndMeeting = "end-meeting"

	MessageTypeParticipants = "participants"
	MessageTypeHostInfo     = "host-info"
	MessageTypeKicked       = "kicked"
	MessageTypeMeetingEnded = "meeting-ended"
	MessageTypeError        = "error"
)

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	UID      uint32 `json:"uid"`
}

// ChatPayload travels both ways: clients send RoomID and Message, the server
// broadcasts UserName and Message.
type ChatPayload struct {
	RoomID   string `json:"roomId,omitempty"`
	UserName string `json:"userName,omitempty"`
	Message  string `json:"message"`
}

type KickPayload struct {
	RoomID   string `json:"roomId"`
	TargetID uint32 `json:"targetId"`
}

type EndMeetingPayload struct {
	RoomID string `json:"roomId"`
}

type ParticipantPayload struct {
	ID       uint32 `json:"id"`
	UserName string `json:"userName"`
}

type HostInfoPayload struct {
	HostID uint32 `json:"hostId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds an envelope around payload. A nil payload is omitted.
func NewMessage(msgType string, payload any) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = raw
	return msg, nil
}
