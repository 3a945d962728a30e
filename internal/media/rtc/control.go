package rtc

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// Control channel message types sent by the media server.
const (
	ControlUserPublished = "user-published"
	ControlUserLeft      = "user-left"
)

// ControlMessage is a message on the "control" data channel.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// UserPayload identifies a remote participant and, for user-published, the
// kind of track it published.
type UserPayload struct {
	UID  uint32 `msgpack:"uid"`
	Kind string `msgpack:"kind,omitempty"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

func newControlMessage(t string, payload any) ([]byte, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(ControlMessage{Type: t, Payload: b})
}

func ParseControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	return &msg, nil
}

// streamPrefix is prepended to the publisher uid in remote stream ids.
const streamPrefix = "uid-"

// ParseStreamUID extracts the publisher uid from a remote track's stream
// id, accepting both "uid-42" and "42".
func ParseStreamUID(streamID string) (domain.ParticipantID, error) {
	id, err := domain.ParseParticipantID(strings.TrimPrefix(streamID, streamPrefix))
	if err != nil || id == 0 {
		return 0, fmt.Errorf("stream id %q does not name a participant", streamID)
	}
	return id, nil
}

func parseKind(s string) (domain.MediaKind, bool) {
	switch s {
	case "audio":
		return domain.MediaAudio, true
	case "video":
		return domain.MediaVideo, true
	}
	return 0, false
}
