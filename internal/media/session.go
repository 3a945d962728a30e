package media

import (
	"context"
	"errors"
	"sync"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 64

var (
	errAlreadyConnected = errors.New("already connected")
	errNotConnected     = errors.New("not connected")
	errAlreadyPublished = errors.New("local tracks already published")
	errAlreadySharing   = errors.New("screen share already active")
)

// ScreenShare is the handle of an active screen share.
type ScreenShare struct {
	track LocalTrack
	done  chan struct{}
	once  sync.Once
}

// Ended is closed when the capture stops outside the application.
func (h *ScreenShare) Ended() <-chan struct{} {
	return h.track.Ended()
}

func (h *ScreenShare) Track() LocalTrack {
	return h.track
}

func (h *ScreenShare) release() {
	h.once.Do(func() { close(h.done) })
}

// Session owns the local tracks and the media transport connection for one
// participant. Lifecycle operations are serialized.
type Session struct {
	transport Transport
	devices   Devices
	log       zerolog.Logger

	ops sync.Mutex

	joined       bool
	mic          LocalTrack
	cam          LocalTrack
	screen       LocalTrack
	camPublished bool
	camEnabled   bool
	video        domain.VideoSource

	mu      sync.Mutex
	share   *ScreenShare
	events  chan Event
	done    chan struct{}
	remotes map[domain.ParticipantID]map[domain.MediaKind]RemoteTrack
	wg      sync.WaitGroup
}

func NewSession(transport Transport, devices Devices) *Session {
	return &Session{
		transport: transport,
		devices:   devices,
		log:       log.With().Str("module", "media").Logger(),
	}
}

// Join connects to the media transport for roomID.
func (s *Session) Join(ctx context.Context, roomID domain.RoomID, token string, uid domain.ParticipantID) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if s.joined {
		return domain.NewStepError("join media", domain.ErrConnect, errAlreadyConnected)
	}
	if err := s.transport.Join(ctx, roomID, token, uid); err != nil {
		return domain.NewStepError("join media", domain.ErrConnect, err)
	}

	events := make(chan Event, eventBuffer)
	done := make(chan struct{})

	s.mu.Lock()
	s.events = events
	s.done = done
	s.remotes = make(map[domain.ParticipantID]map[domain.MediaKind]RemoteTrack)
	s.mu.Unlock()

	s.joined = true
	s.wg.Add(1)
	go s.forward(s.transport.Events(), events, done)

	s.log.Info().Str("room", string(roomID)).Stringer("uid", uid).Msg("joined media transport")
	return nil
}

// Events returns the event stream of the current join, or nil when not joined.
func (s *Session) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// PublishLocalTracks opens the microphone and camera and publishes both.
// On failure nothing stays published and every acquired track is stopped.
func (s *Session) PublishLocalTracks(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	const step = "publish local tracks"

	if !s.joined {
		return domain.NewStepError(step, domain.ErrPublish, errNotConnected)
	}
	if s.mic != nil || s.cam != nil {
		return domain.NewStepError(step, domain.ErrPublish, errAlreadyPublished)
	}

	mic, err := s.devices.OpenMicrophone(ctx)
	if err != nil {
		return domain.NewStepError("open microphone", domain.ErrCapture, err)
	}
	cam, err := s.devices.OpenCamera(ctx)
	if err != nil {
		mic.Stop()
		return domain.NewStepError("open camera", domain.ErrCapture, err)
	}

	if err := s.transport.Publish(ctx, mic, cam); err != nil {
		if uerr := s.transport.Unpublish(ctx, mic, cam); uerr != nil {
			s.log.Debug().Err(uerr).Msg("unpublish after failed publish")
		}
		mic.Stop()
		cam.Stop()
		return domain.NewStepError(step, domain.ErrPublish, err)
	}

	s.mic = mic
	s.cam = cam
	s.camPublished = true
	s.camEnabled = cam.Enabled()
	s.video = domain.VideoSourceCamera
	return nil
}

// SetTrackEnabled mutes or unmutes a local track. Missing tracks are ignored.
func (s *Session) SetTrackEnabled(source domain.Source, enabled bool) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	var track LocalTrack
	switch source {
	case domain.SourceMicrophone:
		track = s.mic
	case domain.SourceCamera:
		s.camEnabled = enabled
		track = s.cam
	case domain.SourceScreen:
		track = s.screen
	}
	if track == nil || track.Enabled() == enabled {
		return nil
	}
	return track.SetEnabled(enabled)
}

// StartScreenShare replaces the published camera with a screen capture.
// The camera is unpublished before the screen is published and stays
// captured so StopScreenShare can reuse it.
func (s *Session) StartScreenShare(ctx context.Context) (*ScreenShare, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	const step = "start screen share"

	if !s.joined {
		return nil, domain.NewStepError(step, domain.ErrScreenShare, errNotConnected)
	}
	if s.screen != nil {
		return nil, domain.NewStepError(step, domain.ErrScreenShare, errAlreadySharing)
	}

	screen, err := s.devices.OpenScreen(ctx)
	if err != nil {
		return nil, domain.NewStepError(step, domain.ErrScreenShare, err)
	}

	hadCam := s.cam != nil && s.camPublished
	if hadCam {
		if err := s.transport.Unpublish(ctx, s.cam); err != nil {
			screen.Stop()
			return nil, domain.NewStepError(step, domain.ErrScreenShare, err)
		}
		s.camPublished = false
		s.video = domain.VideoSourceNone
	}

	if err := s.transport.Publish(ctx, screen); err != nil {
		screen.Stop()
		if !hadCam {
			return nil, domain.NewStepError(step, domain.ErrScreenShare, err)
		}
		if rerr := s.publishCamera(ctx); rerr != nil {
			return nil, domain.NewStepError(step, domain.ErrScreenShare, errors.Join(err, rerr))
		}
		return nil, domain.NewStepError(step, domain.ErrScreenShare, err)
	}

	share := &ScreenShare{track: screen, done: make(chan struct{})}
	s.screen = screen
	s.video = domain.VideoSourceScreen

	s.mu.Lock()
	s.share = share
	events, done := s.events, s.done
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watchShare(share, events, done)

	s.log.Info().Msg("screen share started")
	return share, nil
}

// StopScreenShare unpublishes the screen and puts the camera back.
// If the camera cannot be restored no video is published and the returned
// error matches domain.ErrVideoDegraded.
func (s *Session) StopScreenShare(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if s.screen == nil {
		return nil
	}

	s.mu.Lock()
	share := s.share
	s.share = nil
	s.mu.Unlock()
	if share != nil {
		share.release()
	}

	screen := s.screen
	s.screen = nil
	err := s.transport.Unpublish(ctx, screen)
	screen.Stop()
	s.video = domain.VideoSourceNone
	if err != nil {
		return domain.NewStepError("stop screen share", domain.ErrVideoDegraded, err)
	}

	if err := s.publishCamera(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("screen share stopped, camera restored")
	return nil
}

// publishCamera publishes the parked camera, reopening it when its capture
// is gone. The reopened track gets the last requested enabled state.
func (s *Session) publishCamera(ctx context.Context) error {
	const step = "restore camera"

	if s.cam == nil || !s.cam.Live() {
		if s.cam != nil {
			s.cam.Stop()
			s.cam = nil
		}
		cam, err := s.devices.OpenCamera(ctx)
		if err != nil {
			s.video = domain.VideoSourceNone
			return domain.NewStepError(step, domain.ErrVideoDegraded, err)
		}
		if cam.Enabled() != s.camEnabled {
			if err := cam.SetEnabled(s.camEnabled); err != nil {
				s.log.Warn().Err(err).Msg("restore camera enabled state")
			}
		}
		s.cam = cam
	}

	if err := s.transport.Publish(ctx, s.cam); err != nil {
		s.video = domain.VideoSourceNone
		return domain.NewStepError(step, domain.ErrVideoDegraded, err)
	}
	s.camPublished = true
	s.video = domain.VideoSourceCamera
	return nil
}

// Leave stops every local track and leaves the transport. It always succeeds.
func (s *Session) Leave(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	for _, t := range []LocalTrack{s.mic, s.cam, s.screen} {
		if t != nil {
			t.Stop()
		}
	}
	s.mic, s.cam, s.screen = nil, nil, nil
	s.camPublished = false
	s.camEnabled = false
	s.video = domain.VideoSourceNone

	if !s.joined {
		return nil
	}
	s.joined = false

	s.mu.Lock()
	if s.share != nil {
		s.share.release()
		s.share = nil
	}
	events, done := s.events, s.done
	s.mu.Unlock()

	// done closes first so forward sees the transport stream end as requested.
	close(done)
	if err := s.transport.Leave(ctx); err != nil {
		s.log.Warn().Err(err).Msg("leave media transport")
	}
	s.wg.Wait()

	s.mu.Lock()
	s.events = nil
	s.done = nil
	s.remotes = nil
	s.mu.Unlock()
	close(events)

	s.log.Info().Msg("left media transport")
	return nil
}

// State reports the local publishing state as the session sees it.
func (s *Session) State() domain.LocalMediaState {
	s.ops.Lock()
	defer s.ops.Unlock()

	return domain.LocalMediaState{
		MicEnabled:        s.mic != nil && s.mic.Enabled(),
		CamEnabled:        s.cam != nil && s.cam.Enabled(),
		ScreenSharing:     s.screen != nil,
		ActiveVideoSource: s.video,
	}
}

// RemoteStats sums the receive counters of every track subscribed from
// participant id.
func (s *Session) RemoteStats(id domain.ParticipantID) (TrackStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks, ok := s.remotes[id]
	if !ok {
		return TrackStats{}, false
	}
	var total TrackStats
	for _, t := range tracks {
		total = total.Add(t.Stats())
	}
	return total, true
}

func (s *Session) forward(in <-chan TransportEvent, out chan<- Event, done <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-in:
			if !ok {
				select {
				case <-done:
					return
				default:
				}
				s.log.Warn().Msg("media transport connection lost")
				s.emit(out, done, Event{Type: EventTransportLost})
				return
			}
			s.handleTransportEvent(ev, out, done)
		}
	}
}

func (s *Session) handleTransportEvent(ev TransportEvent, out chan<- Event, done <-chan struct{}) {
	switch ev.Type {
	case TransportUserPublished:
		if ev.Track != nil {
			if err := ev.Track.Play(); err != nil {
				s.log.Warn().Err(err).Stringer("uid", ev.UID).Stringer("kind", ev.Kind).Msg("play remote track")
			}
			s.mu.Lock()
			if s.remotes != nil {
				if s.remotes[ev.UID] == nil {
					s.remotes[ev.UID] = make(map[domain.MediaKind]RemoteTrack)
				}
				s.remotes[ev.UID][ev.Kind] = ev.Track
			}
			s.mu.Unlock()
		}
		s.emit(out, done, Event{Type: EventRemoteTrackAvailable, ParticipantID: ev.UID, Kind: ev.Kind})

	case TransportUserLeft:
		s.mu.Lock()
		delete(s.remotes, ev.UID)
		s.mu.Unlock()
		s.emit(out, done, Event{Type: EventRemoteTrackEnded, ParticipantID: ev.UID})
	}
}

func (s *Session) watchShare(share *ScreenShare, out chan<- Event, done <-chan struct{}) {
	defer s.wg.Done()

	select {
	case <-share.track.Ended():
	case <-share.done:
		return
	case <-done:
		return
	}

	s.mu.Lock()
	active := s.share == share
	s.mu.Unlock()
	if !active {
		return
	}
	s.log.Info().Msg("screen capture ended externally")
	s.emit(out, done, Event{Type: EventScreenShareEnded})
}

func (s *Session) emit(out chan<- Event, done <-chan struct{}, ev Event) {
	select {
	case out <- ev:
	case <-done:
	}
}
