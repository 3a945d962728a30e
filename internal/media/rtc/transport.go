package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/dns"
	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the media server.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the media server.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// SDP bodies are larger than signaling messages.
	maxMessageSize = 1 << 20

	// Time allowed for the media server to answer an offer.
	signalTimeout = 30 * time.Second

	controlLabel = "control"
)

var (
	errAlreadyJoined   = errors.New("already joined")
	errNotJoined       = errors.New("not joined")
	errClosed          = errors.New("media connection closed")
	errSignalTimeout   = errors.New("media server did not answer in time")
	errUnsupportedType = errors.New("track cannot be published by this transport")
)

// pionTrack is a local track backed by a pion TrackLocal.
type pionTrack interface {
	TrackLocal() webrtc.TrackLocal
}

// signal is the JSON envelope exchanged with the media server.
type signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// Transport publishes and subscribes through a selective forwarding unit.
// Offers, answers and ICE candidates travel over a websocket; participant
// notices arrive on the "control" data channel.
type Transport struct {
	url    string
	config webrtc.Configuration
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu  sync.Mutex
	cur *peerSession
}

var _ media.Transport = (*Transport)(nil)

func NewTransport(mediaURL string, config webrtc.Configuration) *Transport {
	return &Transport{
		url:    mediaURL,
		config: config,
		dialer: &websocket.Dialer{
			NetDialContext:   dns.DialContext,
			HandshakeTimeout: 15 * time.Second,
		},
		log: log.With().Str("module", "rtc").Logger(),
	}
}

func (t *Transport) Join(ctx context.Context, roomID domain.RoomID, token string, uid domain.ParticipantID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur != nil {
		return errAlreadyJoined
	}

	u, err := url.Parse(t.url)
	if err != nil {
		return fmt.Errorf("invalid media url: %w", err)
	}
	q := u.Query()
	q.Set("room", string(roomID))
	q.Set("uid", uid.String())
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := t.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial media server: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial media server: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		ws.Close()
		return fmt.Errorf("create peer connection: %w", err)
	}

	s := &peerSession{
		pc:      pc,
		ws:      ws,
		answers: make(chan webrtc.SessionDescription, 1),
		events:  make(chan media.TransportEvent, 64),
		done:    make(chan struct{}),
		senders: make(map[media.LocalTrack]*webrtc.RTPSender),
		log:     t.log.With().Str("room", string(roomID)).Stringer("uid", uid).Logger(),
	}
	if err := s.start(); err != nil {
		s.close()
		return err
	}

	s.negotiate.Lock()
	err = s.renegotiate(ctx)
	s.negotiate.Unlock()
	if err != nil {
		s.close()
		s.wg.Wait()
		return err
	}

	t.cur = s
	s.log.Info().Msg("media connected")
	return nil
}

func (t *Transport) current() (*peerSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil, errNotJoined
	}
	return t.cur, nil
}

func (t *Transport) Publish(ctx context.Context, tracks ...media.LocalTrack) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	var added []media.LocalTrack
	for _, track := range tracks {
		pt, ok := track.(pionTrack)
		if !ok {
			s.removeSenders(added)
			return fmt.Errorf("%s: %w", track.Source(), errUnsupportedType)
		}
		sender, err := s.pc.AddTrack(pt.TrackLocal())
		if err != nil {
			s.removeSenders(added)
			return fmt.Errorf("add %s track: %w", track.Source(), err)
		}
		s.senders[track] = sender
		added = append(added, track)

		s.wg.Add(1)
		go s.drainRTCP(sender)
	}
	if err := s.renegotiate(ctx); err != nil {
		s.removeSenders(added)
		return err
	}
	return nil
}

func (t *Transport) Unpublish(ctx context.Context, tracks ...media.LocalTrack) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	removed := s.removeSenders(tracks)
	if removed == 0 {
		return nil
	}
	return s.renegotiate(ctx)
}

func (t *Transport) Leave(context.Context) error {
	t.mu.Lock()
	s := t.cur
	t.cur = nil
	t.mu.Unlock()

	if s == nil {
		return nil
	}
	s.close()
	s.wg.Wait()
	s.log.Info().Msg("media disconnected")
	return nil
}

func (t *Transport) Events() <-chan media.TransportEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return nil
	}
	return t.cur.events
}

// peerSession is one joined media connection.
type peerSession struct {
	pc *webrtc.PeerConnection
	ws *websocket.Conn
	// writeMu serializes websocket writes.
	writeMu sync.Mutex

	// negotiate serializes offer/answer rounds and guards senders.
	negotiate sync.Mutex
	senders   map[media.LocalTrack]*webrtc.RTPSender
	answers   chan webrtc.SessionDescription

	events chan media.TransportEvent
	emitMu sync.RWMutex
	closed bool

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	log  zerolog.Logger
}

func (s *peerSession) start() error {
	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		cand := c.ToJSON()
		if err := s.send(signal{Type: "candidate", Candidate: &cand}); err != nil {
			s.log.Debug().Err(err).Msg("send candidate")
		}
	})

	s.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug().Str("peer_connection_state", state.String()).Msg("peer state")
		if state == webrtc.PeerConnectionStateFailed {
			go s.close()
		}
	})

	s.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.log.Debug().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")

		uid, err := ParseStreamUID(track.StreamID())
		if err != nil {
			s.log.Warn().Err(err).Msg("ignoring remote track")
			return
		}
		kind := domain.MediaVideo
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			kind = domain.MediaAudio
		}
		s.emit(media.TransportEvent{
			Type:  media.TransportUserPublished,
			UID:   uid,
			Kind:  kind,
			Track: newRemoteTrack(track, kind),
		})
	})

	ordered := true
	dc, err := s.pc.CreateDataChannel(controlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleControl(msg.Data)
	})

	s.ws.SetReadLimit(maxMessageSize)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.wg.Add(2)
	go s.readLoop()
	go s.keepalive()
	return nil
}

func (s *peerSession) handleControl(data []byte) {
	msg, err := ParseControlMessage(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad control message")
		return
	}
	var p UserPayload
	if err := msg.DecodePayload(&p); err != nil || p.UID == 0 {
		s.log.Warn().Str("type", msg.Type).Msg("control message without uid")
		return
	}

	switch msg.Type {
	case ControlUserLeft:
		s.emit(media.TransportEvent{Type: media.TransportUserLeft, UID: domain.ParticipantID(p.UID)})
	case ControlUserPublished:
		// Tracks are announced through OnTrack once negotiated.
		kind, _ := parseKind(p.Kind)
		s.log.Debug().Uint32("uid", p.UID).Stringer("kind", kind).Msg("user published")
	default:
		s.log.Debug().Str("type", msg.Type).Msg("unknown control message")
	}
}

func (s *peerSession) readLoop() {
	defer s.wg.Done()
	defer s.close()

	for {
		var sig signal
		if err := s.ws.ReadJSON(&sig); err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn().Err(err).Msg("media server connection lost")
			}
			return
		}

		switch sig.Type {
		case "answer":
			select {
			case s.answers <- webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP}:
			default:
				s.log.Warn().Msg("unexpected answer")
			}
		case "offer":
			s.wg.Add(1)
			go s.answerOffer(sig.SDP)
		case "candidate":
			if sig.Candidate == nil {
				continue
			}
			if err := s.pc.AddICECandidate(*sig.Candidate); err != nil {
				s.log.Warn().Err(err).Msg("add ICE candidate")
			}
		default:
			s.log.Debug().Str("type", sig.Type).Msg("unknown signal")
		}
	}
}

func (s *peerSession) keepalive() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.ws.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// renegotiate runs one offer/answer round. Callers hold negotiate.
func (s *peerSession) renegotiate(ctx context.Context) error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := s.send(signal{Type: "offer", SDP: offer.SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	timer := time.NewTimer(signalTimeout)
	defer timer.Stop()
	select {
	case answer := <-s.answers:
		if err := s.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errClosed
	case <-timer.C:
		return errSignalTimeout
	}
}

func (s *peerSession) answerOffer(sdp string) {
	defer s.wg.Done()
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.log.Warn().Err(err).Msg("set remote offer")
		return
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("create answer")
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.log.Warn().Err(err).Msg("set local answer")
		return
	}
	if err := s.send(signal{Type: "answer", SDP: answer.SDP}); err != nil {
		s.log.Warn().Err(err).Msg("send answer")
	}
}

// removeSenders detaches tracks from the peer connection. Callers hold
// negotiate.
func (s *peerSession) removeSenders(tracks []media.LocalTrack) int {
	removed := 0
	for _, track := range tracks {
		sender, ok := s.senders[track]
		if !ok {
			continue
		}
		delete(s.senders, track)
		if err := s.pc.RemoveTrack(sender); err != nil {
			s.log.Warn().Err(err).Stringer("source", track.Source()).Msg("remove track")
		}
		removed++
	}
	return removed
}

// drainRTCP reads RTCP so pion's interceptors keep running.
func (s *peerSession) drainRTCP(sender *webrtc.RTPSender) {
	defer s.wg.Done()
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (s *peerSession) send(sig signal) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return errClosed
	default:
	}
	s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return s.ws.WriteJSON(sig)
}

func (s *peerSession) emit(ev media.TransportEvent) {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// close tears the connection down and closes the event stream. Safe to
// call more than once and from any goroutine.
func (s *peerSession) close() {
	s.once.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.ws.Close()
		s.writeMu.Unlock()

		if err := s.pc.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close peer connection")
		}

		s.emitMu.Lock()
		s.closed = true
		close(s.events)
		s.emitMu.Unlock()
	})
}
