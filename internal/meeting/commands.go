package meeting

import (
	"context"
	"errors"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/media"
	"github.com/BioHazard786/Warpmeet/internal/signaling"
)

const (
	noticeLeft         = "You left the meeting"
	noticeKicked       = "You were removed by the host"
	noticeMeetingEnded = "The host ended the meeting"
	noticeConnLost     = "Connection to the meeting server was lost"
	noticeShareEnded   = "Screen sharing ended"
)

type cmdKind int

const (
	cmdJoin cmdKind = iota
	cmdLeave
	cmdToggleMic
	cmdToggleCam
	cmdToggleScreen
	cmdStopShare
	cmdKick
	cmdEndMeeting
)

type command struct {
	kind   cmdKind
	roomID domain.RoomID
	name   string
	target domain.ParticipantID
	notice string
	reply  chan error
}

func (cmd *command) respond(err error) {
	if cmd.reply != nil {
		cmd.reply <- err
	}
}

// task is a long-running step executed off the loop. done runs on the loop
// with the result.
type task struct {
	name string
	run  func(ctx context.Context) error
	done func(err error) error
	cmd  *command
}

type taskResult struct {
	task *task
	err  error
}

type signalingReady struct{ events <-chan signaling.Event }

type mediaReady struct{ events <-chan media.Event }

func (c *Coordinator) handle(msg any) {
	switch m := msg.(type) {
	case *command:
		if c.busy {
			c.deferred = append(c.deferred, m)
			return
		}
		c.dispatch(m)

	case taskResult:
		c.busy = false
		err := m.err
		if m.task.done != nil {
			err = m.task.done(m.err)
		}
		if m.task.cmd != nil {
			m.task.cmd.respond(err)
		}
		c.drain()

	case signalingReady:
		if c.phase == domain.PhaseJoining {
			c.sigEvents = m.events
		}

	case mediaReady:
		if c.phase == domain.PhaseJoining {
			c.mediaEvents = m.events
		}
	}
}

// drain runs deferred commands in arrival order until one starts a task.
func (c *Coordinator) drain() {
	for !c.busy && len(c.deferred) > 0 {
		cmd := c.deferred[0]
		c.deferred = c.deferred[1:]
		c.dispatch(cmd)
	}
}

func (c *Coordinator) start(t *task) {
	c.busy = true
	c.tasks.Add(1)
	ctx := c.ctx
	c.log.Debug().Str("task", t.name).Msg("task started")
	go func() {
		defer c.tasks.Done()
		err := t.run(ctx)
		c.post(taskResult{task: t, err: err})
	}()
}

func (c *Coordinator) dispatch(cmd *command) {
	switch cmd.kind {
	case cmdJoin:
		c.beginJoin(cmd)
	case cmdLeave:
		c.beginTeardown(cmd)
	case cmdToggleMic:
		c.toggleTrack(cmd, domain.SourceMicrophone)
	case cmdToggleCam:
		c.toggleTrack(cmd, domain.SourceCamera)
	case cmdToggleScreen:
		if c.phase != domain.PhaseActive {
			cmd.respond(nil)
			return
		}
		if c.local.ScreenSharing {
			c.stopShare(cmd, "")
		} else {
			c.startShare(cmd)
		}
	case cmdStopShare:
		if c.phase != domain.PhaseActive || !c.local.ScreenSharing {
			cmd.respond(nil)
			return
		}
		c.stopShare(cmd, cmd.notice)
	case cmdKick:
		if c.phase != domain.PhaseActive {
			cmd.respond(nil)
			return
		}
		cmd.respond(c.sig.KickParticipant(c.roomID, cmd.target))
	case cmdEndMeeting:
		if c.phase != domain.PhaseActive {
			cmd.respond(nil)
			return
		}
		cmd.respond(c.sig.EndMeeting(c.roomID))
	}
}

func (c *Coordinator) beginJoin(cmd *command) {
	if c.phase != domain.PhaseIdle {
		cmd.respond(domain.NewStepError("join", domain.ErrBusy, nil))
		return
	}

	roomID, name, uid := cmd.roomID, cmd.name, c.newID()
	c.phase = domain.PhaseJoining
	c.roomID = roomID
	c.displayName = name
	c.localID = uid
	c.local = domain.LocalMediaState{}
	c.room.reset()
	c.log.Info().Str("room", string(roomID)).Stringer("uid", uid).Msg("joining")
	c.publish("")

	c.start(&task{
		name: "join",
		cmd:  cmd,
		run: func(ctx context.Context) error {
			return c.runJoin(ctx, roomID, name, uid)
		},
		done: func(err error) error {
			if err != nil {
				c.log.Warn().Err(err).Msg("join failed")
				c.resetRoom()
				c.publish(err.Error())
				return err
			}
			c.phase = domain.PhaseActive
			c.local = domain.JoinedMediaState()
			c.chat.Bind(c.roomID)
			c.log.Info().Msg("joined")
			c.publish("")
			return nil
		},
	})
}

// runJoin performs the join steps in order and releases everything it
// acquired when a step fails.
func (c *Coordinator) runJoin(ctx context.Context, roomID domain.RoomID, name string, uid domain.ParticipantID) (err error) {
	if err := c.sig.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			c.media.Leave(context.WithoutCancel(ctx))
			c.sig.Disconnect()
		}
	}()
	c.post(signalingReady{events: c.sig.Events()})

	if err := c.sig.AnnounceJoin(roomID, uid, name); err != nil {
		return err
	}

	token, err := c.creds.Fetch(ctx, roomID, uid)
	if err != nil {
		return err
	}

	if err := c.media.Join(ctx, roomID, token, uid); err != nil {
		return err
	}
	c.post(mediaReady{events: c.media.Events()})

	return c.media.PublishLocalTracks(ctx)
}

// beginTeardown runs the single teardown path shared by leave, kick,
// meeting end and connection loss.
func (c *Coordinator) beginTeardown(cmd *command) {
	if c.phase != domain.PhaseActive {
		cmd.respond(nil)
		return
	}

	c.phase = domain.PhaseLeaving
	c.sigEvents = nil
	c.mediaEvents = nil
	c.log.Info().Str("reason", cmd.notice).Msg("leaving")
	c.publish("")

	c.start(&task{
		name: "leave",
		cmd:  cmd,
		run: func(ctx context.Context) error {
			ctx = context.WithoutCancel(ctx)
			c.media.Leave(ctx)
			c.sig.Disconnect()
			return nil
		},
		done: func(error) error {
			c.resetRoom()
			c.publish(cmd.notice)
			return nil
		},
	})
}

func (c *Coordinator) resetRoom() {
	c.phase = domain.PhaseIdle
	c.roomID = ""
	c.localID = 0
	c.displayName = ""
	c.local = domain.LocalMediaState{}
	c.room.reset()
	c.sigEvents = nil
	c.mediaEvents = nil
	c.chat.Reset()
}

func (c *Coordinator) toggleTrack(cmd *command, source domain.Source) {
	if c.phase != domain.PhaseActive {
		cmd.respond(nil)
		return
	}

	var want bool
	if source == domain.SourceMicrophone {
		want = !c.local.MicEnabled
	} else {
		want = !c.local.CamEnabled
	}

	c.start(&task{
		name: "toggle " + source.String(),
		cmd:  cmd,
		run: func(context.Context) error {
			return c.media.SetTrackEnabled(source, want)
		},
		done: func(err error) error {
			if c.phase != domain.PhaseActive {
				return nil
			}
			if err != nil {
				c.publish(err.Error())
				return err
			}
			if source == domain.SourceMicrophone {
				c.local.MicEnabled = want
			} else {
				c.local.CamEnabled = want
			}
			c.publish("")
			return nil
		},
	})
}

func (c *Coordinator) startShare(cmd *command) {
	c.start(&task{
		name: "start screen share",
		cmd:  cmd,
		run: func(ctx context.Context) error {
			_, err := c.media.StartScreenShare(ctx)
			return err
		},
		done: func(err error) error {
			if c.phase != domain.PhaseActive {
				return nil
			}
			switch {
			case err == nil:
				c.local.ScreenSharing = true
				c.local.ActiveVideoSource = domain.VideoSourceScreen
				c.publish("")
			case errors.Is(err, domain.ErrVideoDegraded):
				c.local.ScreenSharing = false
				c.local.ActiveVideoSource = domain.VideoSourceNone
				c.publish(err.Error())
			default:
				c.publish(err.Error())
			}
			return err
		},
	})
}

func (c *Coordinator) stopShare(cmd *command, notice string) {
	c.start(&task{
		name: "stop screen share",
		cmd:  cmd,
		run: func(ctx context.Context) error {
			return c.media.StopScreenShare(ctx)
		},
		done: func(err error) error {
			if c.phase != domain.PhaseActive {
				return nil
			}
			c.local.ScreenSharing = false
			if err != nil {
				c.local.ActiveVideoSource = domain.VideoSourceNone
				c.publish(err.Error())
				return err
			}
			c.local.ActiveVideoSource = domain.VideoSourceCamera
			c.publish(notice)
			return nil
		},
	})
}

// enqueue queues an internally generated command behind any running task.
func (c *Coordinator) enqueue(cmd *command) {
	if c.busy {
		c.deferred = append(c.deferred, cmd)
		return
	}
	c.dispatch(cmd)
}
