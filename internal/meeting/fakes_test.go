package meeting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/chat"
	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/media/mediatest"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
	"github.com/stretchr/testify/require"
)

type fakeSignaler struct {
	mu          sync.Mutex
	connectErr  error
	announceErr error
	connected   bool
	events      chan signaling.Event
	connects    int
	disconnects int
	announced   []string
	chats       []string
	kicks       []domain.ParticipantID
	ends        int
	onAnnounce  func(uid domain.ParticipantID, name string) []signaling.Event
}

func (f *fakeSignaler) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return domain.NewStepError("connect signaling", domain.ErrConnect, f.connectErr)
	}
	f.connected = true
	f.events = make(chan signaling.Event, 64)
	f.connects++
	return nil
}

func (f *fakeSignaler) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return
	}
	f.connected = false
	f.disconnects++
	close(f.events)
}

func (f *fakeSignaler) Events() <-chan signaling.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	return f.events
}

func (f *fakeSignaler) AnnounceJoin(roomID domain.RoomID, uid domain.ParticipantID, name string) error {
	f.mu.Lock()
	if f.announceErr != nil {
		defer f.mu.Unlock()
		return domain.NewStepError("announce join", domain.ErrConnect, f.announceErr)
	}
	f.announced = append(f.announced, string(roomID)+"/"+name)
	hook := f.onAnnounce
	f.mu.Unlock()

	if hook != nil {
		for _, ev := range hook(uid, name) {
			f.push(ev)
		}
	}
	return nil
}

func (f *fakeSignaler) SendChat(roomID domain.RoomID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, body)
	return nil
}

func (f *fakeSignaler) KickParticipant(_ domain.RoomID, target domain.ParticipantID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, target)
	return nil
}

func (f *fakeSignaler) EndMeeting(domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	return nil
}

// push delivers ev as if the server had sent it.
func (f *fakeSignaler) push(ev signaling.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		f.events <- ev
	}
}

// drop simulates the server connection going away.
func (f *fakeSignaler) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return
	}
	f.events <- signaling.Event{Type: signaling.EventDisconnected}
	f.connected = false
	close(f.events)
}

func (f *fakeSignaler) stats() (connected bool, connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected, f.connects, f.disconnects
}

type fakeCredentials struct {
	mu    sync.Mutex
	token string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeCredentials) Fetch(ctx context.Context, roomID domain.RoomID, uid domain.ParticipantID) (string, error) {
	f.mu.Lock()
	f.calls++
	gate, token, err := f.gate, f.token, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", domain.NewStepError("fetch credential", domain.ErrCredential, err)
	}
	return token, nil
}

type harness struct {
	c       *Coordinator
	sig     *fakeSignaler
	creds   *fakeCredentials
	tr      *mediatest.Transport
	dev     *mediatest.Devices
	session *media.Session
}

const aliceID domain.ParticipantID = 1

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()

	sig := &fakeSignaler{}
	sig.onAnnounce = func(uid domain.ParticipantID, name string) []signaling.Event {
		return []signaling.Event{
			{Type: signaling.EventRosterUpdated, Roster: []domain.RosterEntry{{ID: uid, DisplayName: name}}},
			{Type: signaling.EventHostAssigned, HostID: uid},
		}
	}
	h := &harness{
		sig:   sig,
		creds: &fakeCredentials{token: "T"},
		tr:    mediatest.NewTransport(),
		dev:   mediatest.NewDevices(),
	}
	h.session = media.NewSession(h.tr, h.dev)
	deps := Deps{
		Signaling:        h.sig,
		Credentials:      h.creds,
		Media:            h.session,
		Chat:             chat.NewRelay(h.sig),
		NewParticipantID: func() domain.ParticipantID { return aliceID },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.c = New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) join(t *testing.T) {
	t.Helper()
	require.NoError(t, h.c.Join(context.Background(), "abcd12", "Alice"))
	h.waitFor(t, func(s domain.Snapshot) bool { return s.InRoster(aliceID) && s.IsHost })
}

func (h *harness) waitFor(t *testing.T, cond func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.c.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return h.c.Snapshot()
}
