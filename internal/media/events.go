package media

import "github.com/BioHazard786/Warpmeet/internal/domain"

type EventType int

const (
	EventRemoteTrackAvailable EventType = iota
	EventRemoteTrackEnded
	EventScreenShareEnded
	// EventTransportLost is the last event of a join whose transport
	// connection went away on its own.
	EventTransportLost
)

func (t EventType) String() string {
	switch t {
	case EventRemoteTrackAvailable:
		return "remote-track-available"
	case EventRemoteTrackEnded:
		return "remote-track-ended"
	case EventScreenShareEnded:
		return "screen-share-ended"
	case EventTransportLost:
		return "transport-lost"
	default:
		return "unknown"
	}
}

// Event is emitted by a Session on its per-join event stream.
type Event struct {
	Type          EventType
	ParticipantID domain.ParticipantID
	Kind          domain.MediaKind
}
