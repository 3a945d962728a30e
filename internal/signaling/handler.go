package signaling

import (
	"encoding/json"

	"github.com/BioHazard786/Warpmeet/internal/domain"
)

type EventType int

const (
	EventRosterUpdated EventType = iota
	EventHostAssigned
	EventChatReceived
	EventKicked
	EventMeetingEnded
	// EventDisconnected reports a connection drop that was not requested
	// through Disconnect. It is always the last event of a connection.
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventRosterUpdated:
		return "roster-updated"
	case EventHostAssigned:
		return "host-assigned"
	case EventChatReceived:
		return "chat-received"
	case EventKicked:
		return "kicked"
	case EventMeetingEnded:
		return "meeting-ended"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a typed inbound signaling notification.
type Event struct {
	Type       EventType
	Roster     []domain.RosterEntry
	HostID     domain.ParticipantID
	SenderName string
	Body       string
	Err        error
}

// decode turns a wire message into an Event. Unknown or malformed messages
// are reported with ok=false.
func decode(msg *Message) (Event, bool, error) {
	switch msg.Type {
	case MessageTypeParticipants:
		var list []ParticipantPayload
		if err := unmarshal(msg.Payload, &list); err != nil {
			return Event{}, false, err
		}
		roster := make([]domain.RosterEntry, 0, len(list))
		for _, p := range list {
			roster = append(roster, domain.RosterEntry{ID: domain.ParticipantID(p.ID), DisplayName: p.UserName})
		}
		return Event{Type: EventRosterUpdated, Roster: roster}, true, nil

	case MessageTypeHostInfo:
		var info HostInfoPayload
		if err := unmarshal(msg.Payload, &info); err != nil {
			return Event{}, false, err
		}
		return Event{Type: EventHostAssigned, HostID: domain.ParticipantID(info.HostID)}, true, nil

	case MessageTypeChat:
		var chat ChatPayload
		if err := unmarshal(msg.Payload, &chat); err != nil {
			return Event{}, false, err
		}
		return Event{Type: EventChatReceived, SenderName: chat.UserName, Body: chat.Message}, true, nil

	case MessageTypeKicked:
		return Event{Type: EventKicked}, true, nil

	case MessageTypeMeetingEnded:
		return Event{Type: EventMeetingEnded}, true, nil

	default:
		return Event{}, false, nil
	}
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
