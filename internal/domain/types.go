package domain

import (
	"strconv"
	"time"
)

// RoomID identifies a meeting room. It is opaque to the client.
type RoomID string

// ParticipantID identifies one active connection in a room.
type ParticipantID uint32

func (id ParticipantID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseParticipantID parses the decimal form used on the wire.
func ParseParticipantID(s string) (ParticipantID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return ParticipantID(n), nil
}

// MediaKind is the kind of a remote track.
type MediaKind int

const (
	MediaAudio MediaKind = iota
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Source is a local capture source.
type Source int

const (
	SourceMicrophone Source = iota
	SourceCamera
	SourceScreen
)

func (s Source) String() string {
	switch s {
	case SourceMicrophone:
		return "microphone"
	case SourceCamera:
		return "camera"
	case SourceScreen:
		return "screen"
	default:
		return "unknown"
	}
}

// Kind reports the media kind a source produces.
func (s Source) Kind() MediaKind {
	if s == SourceMicrophone {
		return MediaAudio
	}
	return MediaVideo
}

// VideoSource is the source currently published as local video.
type VideoSource int

const (
	// VideoSourceNone means no local video is published. The session only
	// lands here after the camera could not be restored.
	VideoSourceNone VideoSource = iota
	VideoSourceCamera
	VideoSourceScreen
)

func (v VideoSource) String() string {
	switch v {
	case VideoSourceCamera:
		return "camera"
	case VideoSourceScreen:
		return "screen"
	default:
		return "none"
	}
}

// LocalMediaState is the local participant's publishing state.
// ActiveVideoSource is VideoSourceScreen exactly when ScreenSharing is set.
type LocalMediaState struct {
	MicEnabled        bool
	CamEnabled        bool
	ScreenSharing     bool
	ActiveVideoSource VideoSource
}

// JoinedMediaState is the state right after a successful join.
func JoinedMediaState() LocalMediaState {
	return LocalMediaState{
		MicEnabled:        true,
		CamEnabled:        true,
		ActiveVideoSource: VideoSourceCamera,
	}
}

// RemoteParticipant is another participant whose media is being received.
type RemoteParticipant struct {
	ID          ParticipantID
	DisplayName string
	HasAudio    bool
	HasVideo    bool
	Receive     ReceiveStats
}

// ReceiveStats is the rate a remote participant's media arrived at over the
// last sampling interval.
type ReceiveStats struct {
	Kbps        float64
	LossPercent float64
}

// RosterEntry is one participant as announced by the signaling server.
type RosterEntry struct {
	ID          ParticipantID
	DisplayName string
}

// ChatMessage is one relayed chat line.
type ChatMessage struct {
	SenderName string
	Body       string
	ReceivedAt time.Time
}

// Phase is the coordinator's session phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseActive
	PhaseLeaving
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseActive:
		return "active"
	case PhaseLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the meeting published after every change.
// Slices are owned by the snapshot and never mutated after publication.
type Snapshot struct {
	Seq         uint64
	Phase       Phase
	RoomID      RoomID
	LocalID     ParticipantID
	DisplayName string
	Local       LocalMediaState
	Roster      []RosterEntry
	HostID      ParticipantID
	IsHost      bool
	Remotes     []RemoteParticipant
	Chat        []ChatMessage
	Notice      string
}

// Remote returns the remote participant with the given id.
func (s Snapshot) Remote(id ParticipantID) (RemoteParticipant, bool) {
	for _, r := range s.Remotes {
		if r.ID == id {
			return r, true
		}
	}
	return RemoteParticipant{}, false
}

// InRoster reports whether id is part of the roster.
func (s Snapshot) InRoster(id ParticipantID) bool {
	for _, e := range s.Roster {
		if e.ID == id {
			return true
		}
	}
	return false
}
