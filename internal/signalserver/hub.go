package signalserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Hub is the central brain of the signaling server.
// It manages all active rooms and clients from a single goroutine.
type Hub struct {
	rooms map[string]*Room

	register   chan *Client
	leave      chan *Client
	broadcast  chan inbound
	roomsQuery chan chan map[string]int
	done       chan struct{}

	log zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		leave:      make(chan *Client),
		broadcast:  make(chan inbound),
		roomsQuery: make(chan chan map[string]int),
		done:       make(chan struct{}),
		log:        log.With().Str("module", "signalserver").Logger(),
	}
}

func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(in inbound) bool {
	select {
	case h.broadcast <- in:
		return true
	case <-h.done:
		return false
	}
}

// Rooms reports the member count of every open room.
func (h *Hub) Rooms(ctx context.Context) map[string]int {
	reply := make(chan map[string]int, 1)
	select {
	case h.roomsQuery <- reply:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case counts := <-reply:
		return counts
	case <-ctx.Done():
		return nil
	}
}

// Run starts the hub's main processing loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			c.log.Debug().Msg("client registered")

		case c := <-h.leave:
			c.log.Debug().Msg("client unregistered")
			h.removeFromRoom(c)
			close(c.send)

		case in := <-h.broadcast:
			h.handle(in.client, in.msg)

		case reply := <-h.roomsQuery:
			counts := make(map[string]int, len(h.rooms))
			for id, r := range h.rooms {
				counts[id] = len(r.Members)
			}
			reply <- counts
		}
	}
}

func (h *Hub) handle(c *Client, msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypeJoinRoom:
		var p signaling.JoinRoomPayload
		if !h.decode(c, msg, &p) {
			return
		}
		h.join(c, p)

	case signaling.MessageTypeChat:
		var p signaling.ChatPayload
		if !h.decode(c, msg, &p) {
			return
		}
		room := h.roomOf(c)
		if room == nil {
			return
		}
		body := strings.TrimSpace(p.Message)
		if body == "" {
			return
		}
		chat := outbound(signaling.MessageTypeChat, signaling.ChatPayload{UserName: c.Name, Message: body})
		for _, m := range room.Members {
			h.deliver(m, chat)
		}

	case signaling.MessageTypeKickUser:
		var p signaling.KickPayload
		if !h.decode(c, msg, &p) {
			return
		}
		room := h.hostRoom(c)
		if room == nil {
			return
		}
		target := room.member(domain.ParticipantID(p.TargetID))
		if target == nil || target == c {
			h.deliver(c, errorMessage("No such participant"))
			return
		}
		h.log.Info().Str("room", room.ID).Stringer("target", target.UID).Msg("participant kicked")
		h.deliver(target, outbound(signaling.MessageTypeKicked, nil))
		h.removeFromRoom(target)

	case signaling.MessageTypeEndMeeting:
		room := h.hostRoom(c)
		if room == nil {
			return
		}
		h.log.Info().Str("room", room.ID).Msg("meeting ended by host")
		ended := outbound(signaling.MessageTypeMeetingEnded, nil)
		for _, m := range room.Members {
			h.deliver(m, ended)
			m.RoomID = ""
		}
		delete(h.rooms, room.ID)

	default:
		h.log.Debug().Str("type", msg.Type).Msg("unknown message type")
	}
}

func (h *Hub) decode(c *Client, msg *signaling.Message, v any) bool {
	if len(msg.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		h.deliver(c, errorMessage("Malformed payload"))
		return false
	}
	return true
}

func (h *Hub) join(c *Client, p signaling.JoinRoomPayload) {
	if c.RoomID != "" {
		h.deliver(c, errorMessage("Already in a room"))
		return
	}
	uid := domain.ParticipantID(p.UID)
	if p.RoomID == "" || uid == 0 {
		h.deliver(c, errorMessage("Room and uid are required"))
		return
	}

	room, ok := h.rooms[p.RoomID]
	if !ok {
		room = &Room{ID: p.RoomID}
		h.rooms[p.RoomID] = room
		h.log.Info().Str("room", room.ID).Msg("room created")
	}
	if room.member(uid) != nil {
		h.deliver(c, errorMessage("Participant id already in use"))
		return
	}

	c.RoomID = room.ID
	c.UID = uid
	c.Name = p.UserName
	room.Members = append(room.Members, c)
	if room.HostID == 0 {
		room.HostID = uid
	}
	h.log.Info().Str("room", room.ID).Stringer("uid", uid).Str("name", c.Name).Msg("participant joined")

	h.announce(room, true)
}

// hostRoom returns c's room when c is its host, and tells c off otherwise.
func (h *Hub) hostRoom(c *Client) *Room {
	room := h.roomOf(c)
	if room == nil {
		return nil
	}
	if room.HostID != c.UID {
		h.deliver(c, errorMessage("Only the host can do that"))
		return nil
	}
	return room
}

func (h *Hub) roomOf(c *Client) *Room {
	if c.RoomID == "" {
		h.deliver(c, errorMessage("You must join a room first"))
		return nil
	}
	room, ok := h.rooms[c.RoomID]
	if !ok {
		c.RoomID = ""
		h.deliver(c, errorMessage("Room not found"))
		return nil
	}
	return room
}

func (h *Hub) removeFromRoom(c *Client) {
	if c.RoomID == "" {
		return
	}
	room, ok := h.rooms[c.RoomID]
	c.RoomID = ""
	if !ok {
		return
	}

	hostChanged := room.remove(c)
	if len(room.Members) == 0 {
		delete(h.rooms, room.ID)
		h.log.Info().Str("room", room.ID).Msg("room deleted")
		return
	}
	h.log.Info().Str("room", room.ID).Stringer("uid", c.UID).Msg("participant left")
	h.announce(room, hostChanged)
}

// announce sends the roster, and the host when requested, to every member.
func (h *Hub) announce(room *Room, withHost bool) {
	roster := outbound(signaling.MessageTypeParticipants, room.roster())
	var host *signaling.Message
	if withHost {
		host = outbound(signaling.MessageTypeHostInfo, signaling.HostInfoPayload{HostID: uint32(room.HostID)})
	}
	for _, m := range room.Members {
		h.deliver(m, roster)
		if host != nil {
			h.deliver(m, host)
		}
	}
}

// deliver queues msg for c without blocking the hub. A client whose buffer
// is full misses the message.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}
