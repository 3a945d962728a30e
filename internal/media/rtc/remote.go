package rtc

import (
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type packetReader func() (*rtp.Packet, error)

// RemoteTrack is a subscribed remote track. Play drains its RTP stream and
// keeps receive counters for display; there is no decoder.
type RemoteTrack struct {
	kind domain.MediaKind
	read packetReader

	once    sync.Once
	bytes   atomic.Uint64
	packets atomic.Uint64
	lost    atomic.Uint64
	lastSeq uint16
}

func newRemoteTrack(track *webrtc.TrackRemote, kind domain.MediaKind) *RemoteTrack {
	return newRemoteTrackFrom(kind, func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	})
}

func newRemoteTrackFrom(kind domain.MediaKind, read packetReader) *RemoteTrack {
	return &RemoteTrack{kind: kind, read: read}
}

func (r *RemoteTrack) Kind() domain.MediaKind { return r.kind }

func (r *RemoteTrack) Play() error {
	r.once.Do(func() { go r.drain() })
	return nil
}

func (r *RemoteTrack) drain() {
	first := true
	for {
		pkt, err := r.read()
		if err != nil {
			return
		}
		r.account(pkt, first)
		first = false
	}
}

// account counts pkt; a forward jump in sequence numbers is loss.
func (r *RemoteTrack) account(pkt *rtp.Packet, first bool) {
	if !first {
		if gap := pkt.SequenceNumber - r.lastSeq; gap > 1 && gap < 1<<15 {
			r.lost.Add(uint64(gap - 1))
		}
	}
	r.lastSeq = pkt.SequenceNumber
	r.packets.Add(1)
	r.bytes.Add(uint64(len(pkt.Payload)))
}

func (r *RemoteTrack) Stats() media.TrackStats {
	return media.TrackStats{
		Bytes:   r.bytes.Load(),
		Packets: r.packets.Load(),
		Lost:    r.lost.Load(),
	}
}
