// Package mediatest provides in-memory media devices and transport for tests.
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
)

// Track is an in-memory LocalTrack.
type Track struct {
	source domain.Source

	mu      sync.Mutex
	enabled bool
	live    bool
	stopped bool
	ended   chan struct{}
	endOnce sync.Once
}

func NewTrack(source domain.Source) *Track {
	return &Track{source: source, enabled: true, live: true, ended: make(chan struct{})}
}

func (t *Track) Source() domain.Source { return t.source }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	return nil
}

func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = false
	t.stopped = true
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Track) Ended() <-chan struct{} { return t.ended }

// End simulates the capture being stopped outside the application.
func (t *Track) End() {
	t.mu.Lock()
	t.live = false
	t.mu.Unlock()
	t.endOnce.Do(func() { close(t.ended) })
}

// Kill makes the capture dead without signalling Ended.
func (t *Track) Kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live = false
}

// Devices hands out Tracks and records every one it opened.
type Devices struct {
	mu     sync.Mutex
	errs   map[domain.Source]error
	opened []*Track
}

func NewDevices() *Devices {
	return &Devices{errs: make(map[domain.Source]error)}
}

// Fail makes every subsequent open of source return err. A nil err clears it.
func (d *Devices) Fail(source domain.Source, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, source)
		return
	}
	d.errs[source] = err
}

func (d *Devices) open(source domain.Source) (media.LocalTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.errs[source]; err != nil {
		return nil, err
	}
	t := NewTrack(source)
	d.opened = append(d.opened, t)
	return t, nil
}

func (d *Devices) OpenMicrophone(context.Context) (media.LocalTrack, error) {
	return d.open(domain.SourceMicrophone)
}

func (d *Devices) OpenCamera(context.Context) (media.LocalTrack, error) {
	return d.open(domain.SourceCamera)
}

func (d *Devices) OpenScreen(context.Context) (media.LocalTrack, error) {
	return d.open(domain.SourceScreen)
}

// Opened returns the tracks opened for source, oldest first.
func (d *Devices) Opened(source domain.Source) []*Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Track
	for _, t := range d.opened {
		if t.source == source {
			out = append(out, t)
		}
	}
	return out
}

// Last returns the most recently opened track for source.
func (d *Devices) Last(source domain.Source) *Track {
	tracks := d.Opened(source)
	if len(tracks) == 0 {
		return nil
	}
	return tracks[len(tracks)-1]
}

// OpenedCount returns how many tracks were opened in total.
func (d *Devices) OpenedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

// AllStopped reports whether every opened track has been stopped.
func (d *Devices) AllStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.opened {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

// RemoteTrack is an in-memory RemoteTrack.
type RemoteTrack struct {
	kind   domain.MediaKind
	played atomic.Int32

	mu    sync.Mutex
	stats media.TrackStats
}

func NewRemoteTrack(kind domain.MediaKind) *RemoteTrack {
	return &RemoteTrack{kind: kind}
}

func (r *RemoteTrack) Kind() domain.MediaKind { return r.kind }

func (r *RemoteTrack) Play() error {
	r.played.Add(1)
	return nil
}

func (r *RemoteTrack) Plays() int { return int(r.played.Load()) }

func (r *RemoteTrack) Stats() media.TrackStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Receive adds to the track's receive counters.
func (r *RemoteTrack) Receive(st media.TrackStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = r.stats.Add(st)
}

// Transport is an in-memory media transport. It records a violation whenever
// more than one local audio or video track is published at the same time.
type Transport struct {
	mu sync.Mutex

	joinErr      error
	publishErr   func(tracks []media.LocalTrack) error
	unpublishErr error

	joined     bool
	room       domain.RoomID
	token      string
	uid        domain.ParticipantID
	published  []media.LocalTrack
	events     chan media.TransportEvent
	joins      int
	leaves     int
	violations []string
}

func NewTransport() *Transport {
	return &Transport{}
}

func (t *Transport) FailJoin(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joinErr = err
}

// FailPublish installs a hook deciding whether a publish call fails.
func (t *Transport) FailPublish(fn func(tracks []media.LocalTrack) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishErr = fn
}

// FailPublishOf makes publishing any track of source fail with err.
func (t *Transport) FailPublishOf(source domain.Source, err error) {
	t.FailPublish(func(tracks []media.LocalTrack) error {
		for _, tr := range tracks {
			if tr.Source() == source {
				return err
			}
		}
		return nil
	})
}

func (t *Transport) FailUnpublish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unpublishErr = err
}

func (t *Transport) Join(_ context.Context, roomID domain.RoomID, token string, uid domain.ParticipantID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joinErr != nil {
		return t.joinErr
	}
	if t.joined {
		return errors.New("already joined")
	}
	t.joined = true
	t.room, t.token, t.uid = roomID, token, uid
	t.events = make(chan media.TransportEvent, 64)
	t.joins++
	return nil
}

func (t *Transport) Publish(_ context.Context, tracks ...media.LocalTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return errors.New("not joined")
	}
	if t.publishErr != nil {
		if err := t.publishErr(tracks); err != nil {
			return err
		}
	}
	for _, tr := range tracks {
		if t.indexOf(tr) < 0 {
			t.published = append(t.published, tr)
		}
	}
	t.check()
	return nil
}

func (t *Transport) Unpublish(_ context.Context, tracks ...media.LocalTrack) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unpublishErr != nil {
		return t.unpublishErr
	}
	for _, tr := range tracks {
		if i := t.indexOf(tr); i >= 0 {
			t.published = append(t.published[:i], t.published[i+1:]...)
		}
	}
	return nil
}

func (t *Transport) Leave(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return nil
	}
	t.joined = false
	t.published = nil
	t.leaves++
	close(t.events)
	return nil
}

func (t *Transport) Events() <-chan media.TransportEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Drop closes the event stream as if the connection to the media server
// had been lost.
func (t *Transport) Drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return
	}
	t.joined = false
	t.published = nil
	close(t.events)
}

// Emit delivers a remote event as if the transport had received it.
func (t *Transport) Emit(ev media.TransportEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joined {
		t.events <- ev
	}
}

// PublishRemote emits a user-published event with a fresh remote track.
func (t *Transport) PublishRemote(uid domain.ParticipantID, kind domain.MediaKind) *RemoteTrack {
	rt := NewRemoteTrack(kind)
	t.Emit(media.TransportEvent{Type: media.TransportUserPublished, UID: uid, Kind: kind, Track: rt})
	return rt
}

// RemoteLeft emits a user-left event.
func (t *Transport) RemoteLeft(uid domain.ParticipantID) {
	t.Emit(media.TransportEvent{Type: media.TransportUserLeft, UID: uid})
}

func (t *Transport) Joined() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined
}

func (t *Transport) JoinedWith() (domain.RoomID, string, domain.ParticipantID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room, t.token, t.uid
}

func (t *Transport) Joins() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joins
}

func (t *Transport) Leaves() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaves
}

// Published returns the sources currently published, in publish order.
func (t *Transport) Published() []domain.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Source, 0, len(t.published))
	for _, tr := range t.published {
		out = append(out, tr.Source())
	}
	return out
}

// IsPublished reports whether track is currently published.
func (t *Transport) IsPublished(track media.LocalTrack) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indexOf(track) >= 0
}

func (t *Transport) Violations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.violations...)
}

func (t *Transport) indexOf(track media.LocalTrack) int {
	for i, tr := range t.published {
		if tr == track {
			return i
		}
	}
	return -1
}

func (t *Transport) check() {
	var audio, video int
	for _, tr := range t.published {
		if tr.Source().Kind() == domain.MediaAudio {
			audio++
		} else {
			video++
		}
	}
	if audio > 1 || video > 1 {
		t.violations = append(t.violations, fmt.Sprintf("published %d audio and %d video tracks at once", audio, video))
	}
}
