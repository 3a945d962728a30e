package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/files"
	"github.com/BioHazard786/Warpmeet/internal/meeting"
	"github.com/BioHazard786/Warpmeet/internal/roomlink"
	"github.com/BioHazard786/Warpmeet/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const leaveTimeout = 10 * time.Second

var (
	flagName     string
	flagHeadless bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a meeting",
	Long: `Join a meeting room and publish microphone and camera from capture files.

Capture files are Ogg/Opus for the microphone and IVF/VP8 for camera and screen.

Examples:
  warpmeet join abcd12 --name Alice --mic-file mic.ogg --camera-file cam.ivf
  warpmeet join https://warpmeet.qzz.io/?room=abcd12 --screen-file slides.ivf
  warpmeet join abcd12 --headless`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := roomlink.Parse(args[0])
		if err != nil {
			return err
		}
		return joinMeeting(cmd, roomID)
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVarP(&flagName, "name", "n", "", "Display name (defaults to $USER)")
	f.BoolVar(&flagHeadless, "headless", false, "Run without the interactive view")
	f.String("mic-file", "", "Ogg/Opus file used as the microphone")
	f.String("camera-file", "", "IVF/VP8 file used as the camera")
	f.String("screen-file", "", "IVF/VP8 file used for screen sharing")
	rootCmd.AddCommand(joinCmd)
}

func joinMeeting(cmd *cobra.Command, roomID domain.RoomID) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closer, err := setupLogging(cfg, !flagHeadless)
	if err != nil {
		return err
	}
	defer closer.Close()

	sources, err := validateSources(cfg.CaptureSources())
	if err != nil {
		return err
	}
	fmt.Println(ui.SourcesView(sources))
	fmt.Println()

	mc := NewMeetingContext(cmd.Context(), cfg)
	defer mc.Close()

	sp := ui.NewConnectionSpinner(fmt.Sprintf("Joining room %s...", roomID))
	sp.Start()
	if err := mc.Coordinator.Join(cmd.Context(), roomID, displayName()); err != nil {
		sp.Error("Could not join the meeting")
		return err
	}
	sp.Success(fmt.Sprintf("Joined room %s", roomID))
	ui.PrintInfof("%s Room link: %s", ui.IconLink, cfg.RoomLink(string(roomID)))

	snaps, unsubscribe := mc.Coordinator.Subscribe()
	defer unsubscribe()

	if flagHeadless {
		return runHeadless(cmd.Context(), mc.Coordinator, snaps)
	}

	summary, err := ui.RunMeeting(mc.Coordinator, snaps)
	if err != nil {
		return err
	}
	fmt.Println(ui.MeetingSummaryView(summary))
	return nil
}

func validateSources(paths map[string]string) (map[string]files.FileInfo, error) {
	if err := files.ValidateSources(paths); err != nil {
		return nil, err
	}
	infos := make(map[string]files.FileInfo, len(paths))
	for label, path := range paths {
		if path == "" {
			continue
		}
		info, err := files.ValidateCapture(path)
		if err != nil {
			return nil, err
		}
		infos[label] = info
	}
	return infos, nil
}

func displayName() string {
	if flagName != "" {
		return flagName
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "Guest"
}

// runHeadless reports meeting changes on stdout until the meeting is over
// or ctx is cancelled, in which case it leaves.
func runHeadless(ctx context.Context, coord *meeting.Coordinator, snaps <-chan domain.Snapshot) error {
	var prev domain.Snapshot
	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
			defer cancel()
			return coord.Leave(leaveCtx)

		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			for _, line := range describeChange(prev, snap) {
				ui.PrintInfo(line)
			}
			log.Debug().Uint64("seq", snap.Seq).Stringer("phase", snap.Phase).Msg("snapshot")
			prev = snap
			if snap.Phase == domain.PhaseIdle {
				return nil
			}
		}
	}
}

// describeChange summarizes what changed between two snapshots.
func describeChange(prev, next domain.Snapshot) []string {
	var lines []string
	for _, e := range next.Roster {
		if !prev.InRoster(e.ID) {
			lines = append(lines, fmt.Sprintf("%s %s joined", ui.IconPeer, e.DisplayName))
		}
	}
	for _, e := range prev.Roster {
		if !next.InRoster(e.ID) {
			lines = append(lines, fmt.Sprintf("%s %s left", ui.IconPeer, e.DisplayName))
		}
	}
	if next.HostID != 0 && next.HostID != prev.HostID {
		lines = append(lines, fmt.Sprintf("%s host is now %s", ui.IconHost, hostName(next)))
	}
	if next.Local != prev.Local && next.Phase == domain.PhaseActive {
		l := next.Local
		lines = append(lines, fmt.Sprintf("mic=%t camera=%t screen=%t video=%s",
			l.MicEnabled, l.CamEnabled, l.ScreenSharing, l.ActiveVideoSource))
	}
	if len(next.Chat) > len(prev.Chat) {
		for _, m := range next.Chat[len(prev.Chat):] {
			lines = append(lines, fmt.Sprintf("%s %s: %s", ui.IconChat, m.SenderName, m.Body))
		}
	}
	if next.Notice != "" && next.Notice != prev.Notice {
		lines = append(lines, next.Notice)
	}
	return lines
}

func hostName(snap domain.Snapshot) string {
	for _, e := range snap.Roster {
		if e.ID == snap.HostID {
			return e.DisplayName
		}
	}
	return snap.HostID.String()
}
