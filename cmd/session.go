package cmd

import (
	"context"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/chat"
	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/credential"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/media/rtc"
	"github.com/BioHazard786/Warpmeet/internal/meeting"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
)

// statsInterval is how often the roster's receive rates refresh.
const statsInterval = 2 * time.Second

// MeetingContext owns a coordinator and the sessions it drives.
type MeetingContext struct {
	Coordinator *meeting.Coordinator
	Config      *config.Config

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMeetingContext wires the signaling, credential, media and chat
// sessions for cfg into a running coordinator.
func NewMeetingContext(ctx context.Context, cfg *config.Config) *MeetingContext {
	sig := signaling.NewSession(cfg.SignalingURL)
	devices := rtc.NewFileDevices(rtc.FileSources{
		Microphone: cfg.MicFile,
		Camera:     cfg.CameraFile,
		Screen:     cfg.ScreenFile,
	})
	transport := rtc.NewTransport(cfg.MediaURL, rtc.Configuration(cfg))

	coord := meeting.New(meeting.Deps{
		Signaling:     sig,
		Credentials:   credential.NewClient(cfg.BackendURL),
		Media:         media.NewSession(transport, devices),
		Chat:          chat.NewRelay(sig),
		StatsInterval: statsInterval,
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	mc := &MeetingContext{
		Coordinator: coord,
		Config:      cfg,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go func() {
		defer close(mc.done)
		coord.Run(runCtx)
	}()
	return mc
}

// Close stops the coordinator, leaving any active meeting.
func (c *MeetingContext) Close() {
	c.cancel()
	<-c.done
}
