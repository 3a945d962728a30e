package meeting

import (
	"testing"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.RosterEntry{ID: 1, DisplayName: "Alice"}
	bob   = domain.RosterEntry{ID: 2, DisplayName: "Bob"}
	carol = domain.RosterEntry{ID: 3, DisplayName: "Carol"}
)

func TestRoomStateOrderIndependence(t *testing.T) {
	rosterFirst := newRoomState()
	rosterFirst.applyRoster([]domain.RosterEntry{alice, bob})
	assert.True(t, rosterFirst.trackAvailable(2, domain.MediaVideo))

	trackFirst := newRoomState()
	assert.True(t, trackFirst.trackAvailable(2, domain.MediaVideo))
	assert.Empty(t, trackFirst.remoteList(), "held until the roster names the participant")
	trackFirst.applyRoster([]domain.RosterEntry{alice, bob})

	want := []domain.RemoteParticipant{{ID: 2, DisplayName: "Bob", HasVideo: true}}
	assert.Equal(t, want, rosterFirst.remoteList())
	assert.Equal(t, want, trackFirst.remoteList())
}

func TestRoomStateSuppressesDepartedParticipants(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob, carol})
	r.applyRoster([]domain.RosterEntry{alice, carol})

	assert.False(t, r.trackAvailable(2, domain.MediaAudio))
	assert.True(t, r.trackAvailable(3, domain.MediaAudio))
	assert.Equal(t, []domain.RemoteParticipant{{ID: 3, DisplayName: "Carol", HasAudio: true}}, r.remoteList())
}

func TestRoomStateRejoinClearsDeparture(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob})
	r.applyRoster([]domain.RosterEntry{alice})
	r.applyRoster([]domain.RosterEntry{alice, bob})

	assert.True(t, r.trackAvailable(2, domain.MediaAudio))
	assert.Len(t, r.remoteList(), 1)
}

func TestRoomStateRosterDropRemovesRemote(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob})
	r.trackAvailable(2, domain.MediaAudio)
	r.trackAvailable(2, domain.MediaVideo)

	assert.Equal(t, []domain.RemoteParticipant{{ID: 2, DisplayName: "Bob", HasAudio: true, HasVideo: true}}, r.remoteList())

	r.applyRoster([]domain.RosterEntry{alice})
	assert.Empty(t, r.remoteList())
	assert.Equal(t, []domain.RosterEntry{alice}, r.rosterCopy())
}

func TestRoomStateRenameFollowsRoster(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob})
	r.trackAvailable(2, domain.MediaAudio)

	r.applyRoster([]domain.RosterEntry{alice, {ID: 2, DisplayName: "Robert"}})

	assert.Equal(t, "Robert", r.remoteList()[0].DisplayName)
}

func TestRoomStateTrackEnded(t *testing.T) {
	r := newRoomState()
	r.trackAvailable(3, domain.MediaAudio)
	r.trackEnded(3)
	r.applyRoster([]domain.RosterEntry{alice, carol})

	assert.Empty(t, r.remoteList(), "pending flags are dropped with the track")
}

func TestRoomStateRemotesSortedByID(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{carol, alice, bob})
	r.trackAvailable(3, domain.MediaAudio)
	r.trackAvailable(1, domain.MediaAudio)
	r.trackAvailable(2, domain.MediaAudio)

	list := r.remoteList()
	assert.Equal(t, []domain.ParticipantID{1, 2, 3}, []domain.ParticipantID{list[0].ID, list[1].ID, list[2].ID})
}

func TestRoomStateReset(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob})
	r.applyRoster([]domain.RosterEntry{alice})
	r.hostID = 1

	r.reset()

	assert.Nil(t, r.rosterCopy())
	assert.Zero(t, r.hostID)
	assert.True(t, r.trackAvailable(2, domain.MediaAudio), "departures do not outlive the meeting")
}

func TestRoomStatePendingSurvivesFewRosters(t *testing.T) {
	r := newRoomState()
	assert.True(t, r.trackAvailable(5, domain.MediaVideo))

	r.applyRoster([]domain.RosterEntry{alice})
	r.applyRoster([]domain.RosterEntry{alice, bob})
	require.Len(t, r.pending, 1)

	r.applyRoster([]domain.RosterEntry{alice, bob, {ID: 5, DisplayName: "Eve"}})
	assert.Equal(t, []domain.RemoteParticipant{{ID: 5, DisplayName: "Eve", HasVideo: true}}, r.remoteList())
	assert.Empty(t, r.pending)
}

func TestRoomStatePendingExpires(t *testing.T) {
	r := newRoomState()
	r.trackAvailable(5, domain.MediaVideo)

	for range maxPendingRosters {
		r.applyRoster([]domain.RosterEntry{alice})
	}
	assert.Empty(t, r.pending)

	r.applyRoster([]domain.RosterEntry{alice, {ID: 5, DisplayName: "Eve"}})
	assert.Empty(t, r.remoteList(), "expired flags are not attached")
}

func TestRoomStatePendingIsBounded(t *testing.T) {
	r := newRoomState()
	for i := range maxPending {
		assert.True(t, r.trackAvailable(domain.ParticipantID(100+i), domain.MediaAudio))
	}
	assert.False(t, r.trackAvailable(999, domain.MediaAudio))
	assert.True(t, r.trackAvailable(100, domain.MediaVideo), "known pending ids still update")
	assert.Len(t, r.pending, maxPending)
}

func TestRoomStateReceiveRates(t *testing.T) {
	r := newRoomState()
	r.applyRoster([]domain.RosterEntry{alice, bob})
	r.trackAvailable(2, domain.MediaAudio)
	start := time.Unix(1000, 0)

	assert.False(t, r.applyStats(2, media.TrackStats{Bytes: 500, Packets: 5}, start), "first sample is a baseline")
	assert.True(t, r.applyStats(2, media.TrackStats{Bytes: 1500, Packets: 14, Lost: 1}, start.Add(time.Second)))
	assert.Equal(t, domain.ReceiveStats{Kbps: 8, LossPercent: 10}, r.remoteList()[0].Receive)

	assert.False(t, r.applyStats(2, media.TrackStats{Bytes: 10}, start.Add(2*time.Second)), "counters restarted")
	assert.False(t, r.applyStats(3, media.TrackStats{Bytes: 10}, start), "not a remote")

	r.applyRoster([]domain.RosterEntry{alice})
	assert.Empty(t, r.samples)
}
