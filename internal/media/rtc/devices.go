package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/files"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	opusClockRate = 48000
	// defaultFrameInterval is used when an IVF header carries no timebase.
	defaultFrameInterval = 33 * time.Millisecond
)

var errStopped = errors.New("track stopped")

// FileSources are the capture files backing each local source.
type FileSources struct {
	Microphone string
	Camera     string
	Screen     string
}

// FileDevices captures from files: Ogg/Opus for the microphone and
// IVF/VP8 for camera and screen. Microphone and camera loop; the screen
// capture ends at EOF as if the user stopped sharing.
type FileDevices struct {
	sources  FileSources
	streamID string
	log      zerolog.Logger
}

var _ media.Devices = (*FileDevices)(nil)

func NewFileDevices(sources FileSources) *FileDevices {
	return &FileDevices{
		sources:  sources,
		streamID: "warpmeet",
		log:      log.With().Str("module", "devices").Logger(),
	}
}

func (d *FileDevices) OpenMicrophone(ctx context.Context) (media.LocalTrack, error) {
	return d.open(ctx, domain.SourceMicrophone, d.sources.Microphone, true)
}

func (d *FileDevices) OpenCamera(ctx context.Context) (media.LocalTrack, error) {
	return d.open(ctx, domain.SourceCamera, d.sources.Camera, true)
}

func (d *FileDevices) OpenScreen(ctx context.Context) (media.LocalTrack, error) {
	return d.open(ctx, domain.SourceScreen, d.sources.Screen, false)
}

func (d *FileDevices) open(ctx context.Context, source domain.Source, path string, loop bool) (media.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("no %s source configured", source)
	}
	info, err := files.ValidateCapture(path)
	if err != nil {
		return nil, err
	}

	var (
		codec  webrtc.RTPCodecCapability
		opener func(io.Reader) (frameSource, error)
	)
	switch {
	case source == domain.SourceMicrophone && info.Container == files.ContainerOgg:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2}
		opener = openOgg
	case source != domain.SourceMicrophone && info.Container == files.ContainerIVF:
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
		opener = openIVF
	default:
		return nil, fmt.Errorf("%s: %s files cannot back the %s", info.Name, info.Container, source)
	}

	sample, err := webrtc.NewTrackLocalStaticSample(codec, source.String(), d.streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", source, err)
	}

	t := newFileTrack(source, sample)
	t.log = d.log.With().Str("source", source.String()).Logger()
	go t.pump(func() (frameSource, io.Closer, error) {
		f, err := os.Open(info.Path)
		if err != nil {
			return nil, nil, err
		}
		src, err := opener(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return src, f, nil
	}, loop)

	d.log.Debug().Str("source", source.String()).Str("file", info.Name).Msg("capture opened")
	return t, nil
}

// frameSource yields encoded frames with their playout duration.
type frameSource interface {
	next() ([]byte, time.Duration, error)
}

type ivfSource struct {
	reader   *ivfreader.IVFReader
	interval time.Duration
}

func openIVF(r io.Reader) (frameSource, error) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, err
	}
	if header.FourCC != "VP80" {
		return nil, fmt.Errorf("unsupported IVF codec %q", header.FourCC)
	}
	interval := defaultFrameInterval
	if header.TimebaseDenominator != 0 && header.TimebaseNumerator != 0 {
		interval = time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	}
	return &ivfSource{reader: reader, interval: interval}, nil
}

func (s *ivfSource) next() ([]byte, time.Duration, error) {
	frame, _, err := s.reader.ParseNextFrame()
	return frame, s.interval, err
}

type oggSource struct {
	reader  *oggreader.OggReader
	granule uint64
}

func openOgg(r io.Reader) (frameSource, error) {
	reader, _, err := oggreader.NewWith(r)
	if err != nil {
		return nil, err
	}
	return &oggSource{reader: reader}, nil
}

func (s *oggSource) next() ([]byte, time.Duration, error) {
	page, header, err := s.reader.ParseNextPage()
	if err != nil {
		return nil, 0, err
	}
	var samples uint64
	if header.GranulePosition > s.granule {
		samples = header.GranulePosition - s.granule
	}
	s.granule = header.GranulePosition
	return page, time.Duration(samples) * time.Second / opusClockRate, nil
}

// fileTrack is a media.LocalTrack fed from a capture file.
type fileTrack struct {
	source domain.Source
	sample *webrtc.TrackLocalStaticSample
	log    zerolog.Logger

	enabled atomic.Bool
	live    atomic.Bool

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	ended   chan struct{}
}

func newFileTrack(source domain.Source, sample *webrtc.TrackLocalStaticSample) *fileTrack {
	t := &fileTrack{
		source: source,
		sample: sample,
		log:    zerolog.Nop(),
		stop:   make(chan struct{}),
		ended:  make(chan struct{}),
	}
	t.enabled.Store(true)
	t.live.Store(true)
	return t
}

func (t *fileTrack) Source() domain.Source { return t.source }

func (t *fileTrack) Enabled() bool { return t.enabled.Load() }

// SetEnabled mutes the track. A muted track keeps pacing but writes nothing.
func (t *fileTrack) SetEnabled(enabled bool) error {
	if !t.live.Load() {
		return fmt.Errorf("%s capture is not running", t.source)
	}
	t.enabled.Store(enabled)
	return nil
}

func (t *fileTrack) Live() bool { return t.live.Load() }

func (t *fileTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.live.Store(false)
	close(t.stop)
}

func (t *fileTrack) Ended() <-chan struct{} { return t.ended }

// TrackLocal exposes the pion track for publishing.
func (t *fileTrack) TrackLocal() webrtc.TrackLocal { return t.sample }

func (t *fileTrack) pump(open func() (frameSource, io.Closer, error), loop bool) {
	defer t.finish()

	for {
		src, closer, err := open()
		if err != nil {
			t.log.Error().Err(err).Msg("open capture")
			return
		}
		frames, err := t.play(src)
		closer.Close()
		switch {
		case errors.Is(err, errStopped):
			return
		case err != nil:
			t.log.Error().Err(err).Msg("read capture")
			return
		case !loop || frames == 0:
			t.log.Debug().Msg("capture reached end of file")
			return
		}
	}
}

// play writes frames at their natural pace until EOF. It returns the number
// of frames read.
func (t *fileTrack) play(src frameSource) (int, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	frames := 0
	for {
		data, dur, err := src.next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames++

		if dur == 0 {
			continue
		}
		if t.enabled.Load() {
			if err := t.sample.WriteSample(pmedia.Sample{Data: data, Duration: dur}); err != nil {
				t.log.Debug().Err(err).Msg("write sample")
			}
		}

		timer.Reset(dur)
		select {
		case <-t.stop:
			return frames, errStopped
		case <-timer.C:
		}
	}
}

// finish marks the capture as gone. Ended only fires when nobody called
// Stop.
func (t *fileTrack) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live.Store(false)
	if !t.stopped {
		close(t.ended)
	}
}
