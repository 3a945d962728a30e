package meeting

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/chat"
	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxParticipantID bounds locally drawn participant ids.
const maxParticipantID = 100000

// ErrStopped is returned for commands sent after Run has returned.
var ErrStopped = errors.New("coordinator stopped")

// Signaler is the signaling session as the coordinator uses it.
type Signaler interface {
	Connect(ctx context.Context) error
	Disconnect()
	Events() <-chan signaling.Event
	AnnounceJoin(roomID domain.RoomID, uid domain.ParticipantID, displayName string) error
	KickParticipant(roomID domain.RoomID, target domain.ParticipantID) error
	EndMeeting(roomID domain.RoomID) error
}

// CredentialSource issues media join tokens.
type CredentialSource interface {
	Fetch(ctx context.Context, roomID domain.RoomID, uid domain.ParticipantID) (string, error)
}

// MediaSession is the media session as the coordinator uses it.
type MediaSession interface {
	Join(ctx context.Context, roomID domain.RoomID, token string, uid domain.ParticipantID) error
	PublishLocalTracks(ctx context.Context) error
	SetTrackEnabled(source domain.Source, enabled bool) error
	StartScreenShare(ctx context.Context) (*media.ScreenShare, error)
	StopScreenShare(ctx context.Context) error
	Leave(ctx context.Context) error
	Events() <-chan media.Event
	RemoteStats(id domain.ParticipantID) (media.TrackStats, bool)
}

// Deps are the collaborators a Coordinator drives. Each is owned by exactly
// one coordinator.
type Deps struct {
	Signaling   Signaler
	Credentials CredentialSource
	Media       MediaSession
	Chat        *chat.Relay
	// NewParticipantID draws the local id for each join. Optional.
	NewParticipantID func() domain.ParticipantID
	// StatsInterval is how often remote receive rates are sampled.
	// Zero turns sampling off.
	StatsInterval time.Duration
}

// Coordinator is the meeting state machine. All state is owned by the
// goroutine running Run; commands, task results and transport events are
// messages into that loop.
type Coordinator struct {
	sig   Signaler
	creds CredentialSource
	media MediaSession
	chat  *chat.Relay
	newID func() domain.ParticipantID
	log   zerolog.Logger

	statsEvery time.Duration

	inbox   chan any
	stopped chan struct{}
	ctx     context.Context
	tasks   sync.WaitGroup

	// loop state
	phase       domain.Phase
	roomID      domain.RoomID
	localID     domain.ParticipantID
	displayName string
	local       domain.LocalMediaState
	room        *roomState
	busy        bool
	deferred    []*command
	sigEvents   <-chan signaling.Event
	mediaEvents <-chan media.Event
	seq         uint64

	subs subscribers
}

// New returns an idle coordinator. Nothing happens until Run is started.
func New(deps Deps) *Coordinator {
	newID := deps.NewParticipantID
	if newID == nil {
		newID = randomParticipantID
	}
	return &Coordinator{
		sig:        deps.Signaling,
		creds:      deps.Credentials,
		media:      deps.Media,
		chat:       deps.Chat,
		newID:      newID,
		log:        log.With().Str("module", "meeting").Logger(),
		statsEvery: deps.StatsInterval,
		inbox:      make(chan any, 16),
		stopped:    make(chan struct{}),
		room:       newRoomState(),
		subs:       subscribers{chans: make(map[int]chan domain.Snapshot)},
	}
}

func randomParticipantID() domain.ParticipantID {
	return domain.ParticipantID(1 + rand.IntN(maxParticipantID-1))
}

// Run processes commands and events until ctx is done. An active meeting is
// torn down on exit.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	c.publish("")

	defer c.shutdown()

	var statsTick <-chan time.Time
	if c.statsEvery > 0 {
		ticker := time.NewTicker(c.statsEvery)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-statsTick:
			c.refreshStats(now)

		case msg := <-c.inbox:
			c.handle(msg)

		case ev, ok := <-c.sigEvents:
			if !ok {
				c.sigEvents = nil
				continue
			}
			c.onSignal(ev)

		case ev, ok := <-c.mediaEvents:
			if !ok {
				c.mediaEvents = nil
				continue
			}
			c.onMedia(ev)
		}
	}
}

func (c *Coordinator) shutdown() {
	close(c.stopped)
	c.tasks.Wait()

	if c.phase != domain.PhaseIdle {
		bg := context.WithoutCancel(c.ctx)
		c.media.Leave(bg)
		c.sig.Disconnect()
		c.chat.Reset()
	}
	for _, cmd := range c.deferred {
		cmd.respond(ErrStopped)
	}
	c.deferred = nil
	c.subs.closeAll()
	c.log.Debug().Msg("coordinator stopped")
}

// post delivers msg to the loop unless it has stopped.
func (c *Coordinator) post(msg any) {
	select {
	case c.inbox <- msg:
	case <-c.stopped:
	}
}

// submit sends a command and waits for its result.
func (c *Coordinator) submit(ctx context.Context, cmd *command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.inbox <- cmd:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join connects to roomID as displayName and publishes microphone and
// camera. It returns once the attempt has succeeded or been rolled back.
func (c *Coordinator) Join(ctx context.Context, roomID domain.RoomID, displayName string) error {
	return c.submit(ctx, &command{kind: cmdJoin, roomID: roomID, name: displayName})
}

// Leave tears the meeting down. It is a no-op when not in a meeting.
func (c *Coordinator) Leave(ctx context.Context) error {
	return c.submit(ctx, &command{kind: cmdLeave, notice: noticeLeft})
}

// ToggleMic mutes or unmutes the microphone.
func (c *Coordinator) ToggleMic(ctx context.Context) error {
	return c.submit(ctx, &command{kind: cmdToggleMic})
}

// ToggleCam turns the camera on or off without unpublishing it.
func (c *Coordinator) ToggleCam(ctx context.Context) error {
	return c.submit(ctx, &command{kind: cmdToggleCam})
}

// ToggleScreenShare starts a screen share, or stops it and restores the camera.
func (c *Coordinator) ToggleScreenShare(ctx context.Context) error {
	return c.submit(ctx, &command{kind: cmdToggleScreen})
}

// Kick asks the server to remove target. Only the host is honored.
func (c *Coordinator) Kick(ctx context.Context, target domain.ParticipantID) error {
	return c.submit(ctx, &command{kind: cmdKick, target: target})
}

// EndMeeting asks the server to end the meeting for everyone.
func (c *Coordinator) EndMeeting(ctx context.Context) error {
	return c.submit(ctx, &command{kind: cmdEndMeeting})
}

// SendChat forwards a chat message to the current room.
func (c *Coordinator) SendChat(body string) error {
	return c.chat.Send(body)
}

// Subscribe returns a stream of snapshots starting with the current one.
// A subscriber that falls behind loses its oldest buffered snapshots.
func (c *Coordinator) Subscribe() (<-chan domain.Snapshot, func()) {
	return c.subs.add()
}

// Snapshot returns the most recently published snapshot.
func (c *Coordinator) Snapshot() domain.Snapshot {
	return c.subs.latestSnapshot()
}

func (c *Coordinator) publish(notice string) {
	c.seq++
	snap := domain.Snapshot{
		Seq:         c.seq,
		Phase:       c.phase,
		RoomID:      c.roomID,
		LocalID:     c.localID,
		DisplayName: c.displayName,
		Local:       c.local,
		Roster:      c.room.rosterCopy(),
		HostID:      c.room.hostID,
		IsHost:      c.localID != 0 && c.room.hostID == c.localID,
		Remotes:     c.room.remoteList(),
		Chat:        c.chat.Messages(),
		Notice:      notice,
	}
	c.subs.broadcast(snap)
}

type subscribers struct {
	mu     sync.Mutex
	next   int
	chans  map[int]chan domain.Snapshot
	latest domain.Snapshot
	closed bool
}

const subscriberBuffer = 16

func (s *subscribers) add() (<-chan domain.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.Snapshot, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.latest
	id := s.next
	s.next++
	s.chans[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.chans[id]; ok {
				delete(s.chans, id)
				close(c)
			}
		})
	}
}

func (s *subscribers) broadcast(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = snap
	for _, ch := range s.chans {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (s *subscribers) latestSnapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.chans {
		delete(s.chans, id)
		close(ch)
	}
}
