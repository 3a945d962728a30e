package signalserver

import (
	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
)

// Room is a meeting on the server. Members are kept in join order.
type Room struct {
	ID      string
	Members []*Client
	HostID  domain.ParticipantID
}

func (r *Room) member(uid domain.ParticipantID) *Client {
	for _, c := range r.Members {
		if c.UID == uid {
			return c
		}
	}
	return nil
}

// remove drops c and hands the host role to the longest-present member if
// c held it. It reports whether the host changed.
func (r *Room) remove(c *Client) (hostChanged bool) {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			break
		}
	}
	if r.HostID != c.UID {
		return false
	}
	r.HostID = 0
	if len(r.Members) > 0 {
		r.HostID = r.Members[0].UID
	}
	return true
}

func (r *Room) roster() []signaling.ParticipantPayload {
	list := make([]signaling.ParticipantPayload, 0, len(r.Members))
	for _, m := range r.Members {
		list = append(list, signaling.ParticipantPayload{ID: uint32(m.UID), UserName: m.Name})
	}
	return list
}
