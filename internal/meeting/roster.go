package meeting

import (
	"sort"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
)

const (
	// maxPendingRosters is how many rosters may omit a pending id before
	// its held media flags are dropped.
	maxPendingRosters = 3
	maxPending        = 64
)

// roomState reconciles the server roster with media track events. The
// roster is replaced wholesale; remote media flags come only from track
// events. Track events may arrive before or after the roster that lists
// their participant, so flags for unknown ids are held until a roster
// names them. Events for ids that already left the roster are dropped.
type roomState struct {
	roster   []domain.RosterEntry
	names    map[domain.ParticipantID]string
	departed map[domain.ParticipantID]struct{}
	pending  map[domain.ParticipantID]*pendingRemote
	remotes  map[domain.ParticipantID]*domain.RemoteParticipant
	samples  map[domain.ParticipantID]statsSample
	hostID   domain.ParticipantID
}

type pendingRemote struct {
	remote domain.RemoteParticipant
	misses int
}

type statsSample struct {
	stats media.TrackStats
	at    time.Time
}

func newRoomState() *roomState {
	r := &roomState{}
	r.reset()
	return r
}

func (r *roomState) reset() {
	r.roster = nil
	r.names = make(map[domain.ParticipantID]string)
	r.departed = make(map[domain.ParticipantID]struct{})
	r.pending = make(map[domain.ParticipantID]*pendingRemote)
	r.remotes = make(map[domain.ParticipantID]*domain.RemoteParticipant)
	r.samples = make(map[domain.ParticipantID]statsSample)
	r.hostID = 0
}

func (r *roomState) applyRoster(entries []domain.RosterEntry) {
	prev := r.names

	r.roster = append([]domain.RosterEntry(nil), entries...)
	r.names = make(map[domain.ParticipantID]string, len(entries))
	for _, e := range entries {
		r.names[e.ID] = e.DisplayName
		delete(r.departed, e.ID)
	}

	for id := range prev {
		if _, ok := r.names[id]; !ok {
			r.departed[id] = struct{}{}
			delete(r.remotes, id)
			delete(r.samples, id)
		}
	}
	for id, rp := range r.remotes {
		rp.DisplayName = r.names[id]
	}
	for id, p := range r.pending {
		name, ok := r.names[id]
		if !ok {
			p.misses++
			if p.misses >= maxPendingRosters {
				delete(r.pending, id)
			}
			continue
		}
		rp := p.remote
		rp.DisplayName = name
		r.remotes[id] = &rp
		delete(r.pending, id)
	}
}

// trackAvailable records a remote track. It reports false when the event
// was suppressed as stale.
func (r *roomState) trackAvailable(id domain.ParticipantID, kind domain.MediaKind) bool {
	if rp, ok := r.remotes[id]; ok {
		setKind(rp, kind)
		return true
	}
	if name, ok := r.names[id]; ok {
		rp := &domain.RemoteParticipant{ID: id, DisplayName: name}
		setKind(rp, kind)
		r.remotes[id] = rp
		return true
	}
	if _, gone := r.departed[id]; gone {
		return false
	}
	p, ok := r.pending[id]
	if !ok {
		if len(r.pending) >= maxPending {
			return false
		}
		p = &pendingRemote{remote: domain.RemoteParticipant{ID: id}}
		r.pending[id] = p
	}
	setKind(&p.remote, kind)
	return true
}

func (r *roomState) trackEnded(id domain.ParticipantID) {
	delete(r.remotes, id)
	delete(r.pending, id)
	delete(r.samples, id)
}

func (r *roomState) remoteIDs() []domain.ParticipantID {
	ids := make([]domain.ParticipantID, 0, len(r.remotes))
	for id := range r.remotes {
		ids = append(ids, id)
	}
	return ids
}

// applyStats turns cumulative receive counters into the rate since the
// previous sample. It reports whether the remote's figures changed.
func (r *roomState) applyStats(id domain.ParticipantID, st media.TrackStats, now time.Time) bool {
	rp, ok := r.remotes[id]
	if !ok {
		return false
	}
	prev, seen := r.samples[id]
	r.samples[id] = statsSample{stats: st, at: now}
	if !seen {
		return false
	}

	elapsed := now.Sub(prev.at).Seconds()
	// Counters restart when a track is replaced.
	if elapsed <= 0 || st.Bytes < prev.stats.Bytes || st.Packets < prev.stats.Packets || st.Lost < prev.stats.Lost {
		return false
	}

	recv := domain.ReceiveStats{
		Kbps: float64(st.Bytes-prev.stats.Bytes) * 8 / 1000 / elapsed,
	}
	lost := st.Lost - prev.stats.Lost
	if total := st.Packets - prev.stats.Packets + lost; total > 0 {
		recv.LossPercent = float64(lost) * 100 / float64(total)
	}
	if recv == rp.Receive {
		return false
	}
	rp.Receive = recv
	return true
}

func (r *roomState) remoteList() []domain.RemoteParticipant {
	if len(r.remotes) == 0 {
		return nil
	}
	out := make([]domain.RemoteParticipant, 0, len(r.remotes))
	for _, rp := range r.remotes {
		out = append(out, *rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *roomState) rosterCopy() []domain.RosterEntry {
	if len(r.roster) == 0 {
		return nil
	}
	return append([]domain.RosterEntry(nil), r.roster...)
}

func setKind(rp *domain.RemoteParticipant, kind domain.MediaKind) {
	switch kind {
	case domain.MediaAudio:
		rp.HasAudio = true
	case domain.MediaVideo:
		rp.HasVideo = true
	}
}
