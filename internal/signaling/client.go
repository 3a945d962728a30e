package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/dns"
	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	eventBuffer    = 32
)

var (
	errAlreadyConnected = errors.New("already connected")
	errNotConnected     = errors.New("not connected")
	errConnectionLost   = errors.New("connection to signaling server lost")
)

// Session is one logical connection to the signaling server.
// Every Connect starts a fresh event stream.
type Session struct {
	serverURL string
	dialer    *websocket.Dialer
	log       zerolog.Logger

	mu   sync.Mutex
	conn *connection
}

type connection struct {
	ws       *websocket.Conn
	outgoing chan *Message
	events   chan Event
	done     chan struct{}
	once     sync.Once
	closing  atomic.Bool
	wg       sync.WaitGroup
}

func NewSession(serverURL string) *Session {
	return &Session{
		serverURL: serverURL,
		dialer: &websocket.Dialer{
			NetDialContext:   dns.DialContext,
			HandshakeTimeout: 10 * time.Second,
		},
		log: log.With().Str("module", "signaling").Logger(),
	}
}

// Connect dials the signaling server.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const step = "connect signaling"

	if s.conn != nil {
		return domain.NewStepError(step, domain.ErrConnect, errAlreadyConnected)
	}

	u, err := url.Parse(s.serverURL)
	if err != nil {
		return domain.NewStepError(step, domain.ErrConnect, fmt.Errorf("invalid server URL: %w", err))
	}

	ws, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return domain.NewStepError(step, domain.ErrConnect, err)
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &connection{
		ws:       ws,
		outgoing: make(chan *Message, 16),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
	s.conn = c

	c.wg.Add(2)
	go s.readPump(c)
	go s.writePump(c)

	s.log.Info().Str("url", u.Redacted()).Msg("connected to signaling server")
	return nil
}

// Disconnect closes the current connection. It is safe to call at any time.
func (s *Session) Disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	c.closing.Store(true)
	c.close()
	c.wg.Wait()
	s.log.Info().Msg("disconnected from signaling server")
}

// Events returns the event stream of the current connection, or nil.
func (s *Session) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.events
}

func (s *Session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// AnnounceJoin tells the server which room the connection belongs to.
func (s *Session) AnnounceJoin(roomID domain.RoomID, uid domain.ParticipantID, displayName string) error {
	return s.send("announce join", MessageTypeJoinRoom, JoinRoomPayload{
		RoomID:   string(roomID),
		UserName: displayName,
		UID:      uint32(uid),
	})
}

func (s *Session) SendChat(roomID domain.RoomID, body string) error {
	return s.send("send chat", MessageTypeChat, ChatPayload{RoomID: string(roomID), Message: body})
}

// KickParticipant asks the server to remove target. The server decides
// whether the sender is allowed to.
func (s *Session) KickParticipant(roomID domain.RoomID, target domain.ParticipantID) error {
	return s.send("kick participant", MessageTypeKickUser, KickPayload{RoomID: string(roomID), TargetID: uint32(target)})
}

func (s *Session) EndMeeting(roomID domain.RoomID) error {
	return s.send("end meeting", MessageTypeEndMeeting, EndMeetingPayload{RoomID: string(roomID)})
}

func (s *Session) send(step, msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return domain.NewStepError(step, domain.ErrConnect, err)
	}

	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return domain.NewStepError(step, domain.ErrConnect, errNotConnected)
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return domain.NewStepError(step, domain.ErrConnect, errNotConnected)
	}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *connection) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// readPump decodes server messages into events until the connection ends.
func (s *Session) readPump(c *connection) {
	defer func() {
		c.close()
		c.ws.Close()
		close(c.events)
		c.wg.Done()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if c.closing.Load() {
				return
			}
			s.log.Warn().Err(err).Msg("signaling connection dropped")
			s.dropped(c)
			c.emit(Event{Type: EventDisconnected, Err: errConnectionLost})
			return
		}

		if msg.Type == MessageTypeError {
			var p ErrorPayload
			_ = json.Unmarshal(msg.Payload, &p)
			s.log.Warn().Str("error", p.Error).Msg("signaling server error")
			continue
		}

		ev, ok, err := decode(&msg)
		if err != nil {
			s.log.Warn().Err(err).Str("type", msg.Type).Msg("malformed signaling message")
			continue
		}
		if !ok {
			s.log.Debug().Str("type", msg.Type).Msg("ignoring signaling message")
			continue
		}
		if !c.emit(ev) {
			return
		}
	}
}

// dropped forgets c so a later Connect can start over.
func (s *Session) dropped(c *connection) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
}

// writePump sends queued messages and keeps the connection alive with pings.
func (s *Session) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.wg.Done()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				s.log.Debug().Err(err).Str("type", msg.Type).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			if c.closing.Load() {
				c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}
	}
}
