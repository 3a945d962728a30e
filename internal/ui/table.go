package ui

import (
	"fmt"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/files"
	"github.com/BioHazard786/Warpmeet/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const maxNameWidth = 24

// styledTable applies the shared table look.
func styledTable(headers []string, rows [][]string, selected int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row == selected:
				return tableCellStyle.Inherit(SelectedStyle)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// participantRows lists the roster in server order with role, media and
// receive columns. The local participant's media comes from its own state,
// remote media from the tracks actually received.
func participantRows(snap domain.Snapshot) [][]string {
	rows := make([][]string, 0, len(snap.Roster))
	for _, e := range snap.Roster {
		name := utils.TruncateString(e.DisplayName, maxNameWidth)
		role := ""
		if e.ID == snap.HostID {
			role = IconHost + " host"
		}

		var audio, video, recv string
		if e.ID == snap.LocalID {
			name += " (you)"
			audio, video = localIcons(snap.Local)
		} else {
			audio, video = IconNoMedia, IconNoMedia
			if r, ok := snap.Remote(e.ID); ok {
				if r.HasAudio {
					audio = IconMicOn
				}
				if r.HasVideo {
					video = IconCamOn
				}
				recv = receiveLabel(r.Receive)
			}
		}
		rows = append(rows, []string{name, role, audio, video, recv})
	}
	return rows
}

func localIcons(local domain.LocalMediaState) (audio, video string) {
	audio = IconMicOff
	if local.MicEnabled {
		audio = IconMicOn
	}
	switch {
	case local.ScreenSharing:
		video = IconScreen
	case local.ActiveVideoSource == domain.VideoSourceCamera && local.CamEnabled:
		video = IconCamOn
	default:
		video = IconCamOff
	}
	return audio, video
}

func receiveLabel(r domain.ReceiveStats) string {
	if r == (domain.ReceiveStats{}) {
		return ""
	}
	label := fmt.Sprintf("%.0f kbit/s", r.Kbps)
	if r.LossPercent > 0 {
		label += fmt.Sprintf(" %.1f%% loss", r.LossPercent)
	}
	return label
}

// RosterView renders the participant table. selected is the highlighted
// row index, or -1 for none.
func RosterView(snap domain.Snapshot, selected int) string {
	rows := participantRows(snap)
	if len(rows) == 0 {
		return MutedStyle.Render("Waiting for participants...")
	}
	return styledTable([]string{"Name", "Role", "Mic", "Video", "Receive"}, rows, selected).Render()
}

// SourcesView lists the capture files backing local media.
func SourcesView(sources map[string]files.FileInfo) string {
	var rows [][]string
	for _, label := range []string{"microphone", "camera", "screen"} {
		info, ok := sources[label]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			label,
			IconFile + " " + utils.TruncateString(info.Name, 40),
			utils.FormatSize(info.Size),
			info.Container.String(),
		})
	}
	if len(rows) == 0 {
		return MutedStyle.Render("No capture sources")
	}
	return styledTable([]string{"Source", "File", "Size", "Format"}, rows, -1).Render()
}

// MeetingSummary is shown after leaving a meeting.
type MeetingSummary struct {
	RoomID       domain.RoomID
	Reason       string
	Duration     string
	Participants int
	Messages     int
}

func MeetingSummaryView(summary MeetingSummary) string {
	rows := [][]string{
		{"Room", string(summary.RoomID)},
		{"Ended", summary.Reason},
		{"Duration", summary.Duration},
		{"Participants", fmt.Sprintf("%d", summary.Participants)},
		{"Chat messages", fmt.Sprintf("%d", summary.Messages)},
	}
	return styledTable([]string{"Meeting", ""}, rows, -1).Render()
}

type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:    %s\n%s Room Link:  %s\n\n%s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
		MutedStyle.Render("Join with: warpmeet join "+r.RoomID),
	)

	return SuccessBoxStyle.Render(content)
}
