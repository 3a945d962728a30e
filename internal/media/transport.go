package media

import (
	"context"

	"github.com/BioHazard786/Warpmeet/internal/domain"
)

// LocalTrack is a locally captured track.
type LocalTrack interface {
	Source() domain.Source
	Enabled() bool
	// SetEnabled mutes or unmutes the track without unpublishing it.
	SetEnabled(enabled bool) error
	// Live reports whether capture is still running.
	Live() bool
	Stop()
	// Ended is closed when capture stops without Stop being called,
	// e.g. the user ended a screen capture from the OS.
	Ended() <-chan struct{}
}

// Devices opens local capture sources. Returned tracks start enabled.
type Devices interface {
	OpenMicrophone(ctx context.Context) (LocalTrack, error)
	OpenCamera(ctx context.Context) (LocalTrack, error)
	OpenScreen(ctx context.Context) (LocalTrack, error)
}

// RemoteTrack is a track received from another participant.
type RemoteTrack interface {
	Kind() domain.MediaKind
	// Play starts local playback and returns immediately.
	Play() error
	// Stats reports what has been received so far.
	Stats() TrackStats
}

// TrackStats are cumulative receive counters of a remote track.
type TrackStats struct {
	Bytes   uint64
	Packets uint64
	Lost    uint64
}

func (s TrackStats) Add(o TrackStats) TrackStats {
	return TrackStats{
		Bytes:   s.Bytes + o.Bytes,
		Packets: s.Packets + o.Packets,
		Lost:    s.Lost + o.Lost,
	}
}

type TransportEventType int

const (
	TransportUserPublished TransportEventType = iota
	TransportUserLeft
)

// TransportEvent is a notification from the media transport.
type TransportEvent struct {
	Type  TransportEventType
	UID   domain.ParticipantID
	Kind  domain.MediaKind
	Track RemoteTrack
}

// Transport is the opaque media transport a Session publishes through.
type Transport interface {
	Join(ctx context.Context, roomID domain.RoomID, token string, uid domain.ParticipantID) error
	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	Leave(ctx context.Context) error
	// Events is valid after a successful Join and is closed when the
	// transport connection goes away.
	Events() <-chan TransportEvent
}
