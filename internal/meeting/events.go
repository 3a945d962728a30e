package meeting

import (
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
)

func (c *Coordinator) onSignal(ev signaling.Event) {
	switch ev.Type {
	case signaling.EventRosterUpdated:
		c.room.applyRoster(ev.Roster)
		c.publish("")

	case signaling.EventHostAssigned:
		c.room.hostID = ev.HostID
		c.publish("")

	case signaling.EventChatReceived:
		c.chat.Append(ev.SenderName, ev.Body)
		c.publish("")

	case signaling.EventKicked:
		c.requestTeardown(noticeKicked)

	case signaling.EventMeetingEnded:
		c.requestTeardown(noticeMeetingEnded)

	case signaling.EventDisconnected:
		c.sigEvents = nil
		c.requestTeardown(noticeConnLost)
	}
}

func (c *Coordinator) requestTeardown(notice string) {
	c.log.Info().Str("reason", notice).Msg("teardown requested")
	c.enqueue(&command{kind: cmdLeave, notice: notice})
}

func (c *Coordinator) onMedia(ev media.Event) {
	switch ev.Type {
	case media.EventRemoteTrackAvailable:
		if ev.ParticipantID == c.localID {
			return
		}
		if !c.room.trackAvailable(ev.ParticipantID, ev.Kind) {
			c.log.Debug().Stringer("uid", ev.ParticipantID).Msg("suppressed track event for departed participant")
			return
		}
		c.publish("")

	case media.EventRemoteTrackEnded:
		c.room.trackEnded(ev.ParticipantID)
		c.publish("")

	case media.EventScreenShareEnded:
		c.enqueue(&command{kind: cmdStopShare, notice: noticeShareEnded})

	case media.EventTransportLost:
		c.mediaEvents = nil
		c.requestTeardown(noticeConnLost)
	}
}

// refreshStats samples receive counters of every remote and publishes when
// a rate changed.
func (c *Coordinator) refreshStats(now time.Time) {
	if c.phase != domain.PhaseActive {
		return
	}
	changed := false
	for _, id := range c.room.remoteIDs() {
		st, ok := c.media.RemoteStats(id)
		if !ok {
			continue
		}
		if c.room.applyStats(id, st, now) {
			changed = true
		}
	}
	if changed {
		c.publish("")
	}
}

