package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/BioHazard786/Warpmeet/internal/utils"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	actionTimeout   = 15 * time.Second
	defaultChatRows = 8
	maxChatLength   = 500
)

// Controller is the part of the meeting coordinator the view drives.
type Controller interface {
	ToggleMic(ctx context.Context) error
	ToggleCam(ctx context.Context) error
	ToggleScreenShare(ctx context.Context) error
	Kick(ctx context.Context, target domain.ParticipantID) error
	EndMeeting(ctx context.Context) error
	Leave(ctx context.Context) error
	SendChat(body string) error
}

type snapshotMsg struct {
	snap domain.Snapshot
	ok   bool
}

type actionDoneMsg struct {
	action string
	err    error
}

// MeetingModel is the interactive meeting view. It renders snapshots and
// turns key presses into coordinator commands.
type MeetingModel struct {
	ctrl  Controller
	snaps <-chan domain.Snapshot

	snap     domain.Snapshot
	selected int
	status   string
	leaving  bool
	quitting bool

	input       textinput.Model
	chatFocused bool
	spinner     spinner.Model

	width, height int

	startedAt time.Time
	now       func() time.Time
	seen      map[domain.ParticipantID]bool
	reason    string
}

func NewMeetingModel(ctrl Controller, snaps <-chan domain.Snapshot) *MeetingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "Type a message"
	in.Prompt = IconChat + " "
	in.CharLimit = maxChatLength

	return &MeetingModel{
		ctrl:      ctrl,
		snaps:     snaps,
		input:     in,
		spinner:   s,
		width:     80,
		height:    24,
		startedAt: time.Now(),
		now:       time.Now,
		seen:      make(map[domain.ParticipantID]bool),
	}
}

func (m *MeetingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *MeetingModel) listen() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snaps
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func (m *MeetingModel) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m *MeetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-8)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		if !msg.ok {
			m.quitting = true
			return m, tea.Quit
		}
		m.apply(msg.snap)
		if msg.snap.Phase == domain.PhaseIdle {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.listen()

	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.leave()
		}
		if m.chatFocused {
			return m, m.updateChat(msg)
		}
		return m, m.updateRoster(msg)
	}

	return m, nil
}

func (m *MeetingModel) apply(snap domain.Snapshot) {
	m.snap = snap
	for _, e := range snap.Roster {
		m.seen[e.ID] = true
	}
	if snap.Notice != "" {
		m.reason = snap.Notice
	}
	if m.selected >= len(snap.Roster) {
		m.selected = len(snap.Roster) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *MeetingModel) leave() tea.Cmd {
	if m.leaving {
		return nil
	}
	m.leaving = true
	return m.run("leave", m.ctrl.Leave)
}

func (m *MeetingModel) updateRoster(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return m.leave()
	case "m":
		return m.run("toggle microphone", m.ctrl.ToggleMic)
	case "c":
		return m.run("toggle camera", m.ctrl.ToggleCam)
	case "s":
		return m.run("toggle screen share", m.ctrl.ToggleScreenShare)
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.snap.Roster)-1 {
			m.selected++
		}
	case "k":
		target, ok := m.kickTarget()
		if !ok {
			return nil
		}
		return m.run("kick", func(ctx context.Context) error {
			return m.ctrl.Kick(ctx, target)
		})
	case "e":
		if !m.snap.IsHost {
			m.status = "Only the host can end the meeting"
			return nil
		}
		return m.run("end meeting", m.ctrl.EndMeeting)
	case "tab", "enter", "/":
		m.chatFocused = true
		return m.input.Focus()
	}
	return nil
}

// kickTarget is the selected participant when the local participant may kick it.
func (m *MeetingModel) kickTarget() (domain.ParticipantID, bool) {
	if !m.snap.IsHost {
		m.status = "Only the host can remove participants"
		return 0, false
	}
	if m.selected < 0 || m.selected >= len(m.snap.Roster) {
		return 0, false
	}
	target := m.snap.Roster[m.selected].ID
	if target == m.snap.LocalID {
		m.status = "Use q to leave the meeting"
		return 0, false
	}
	return target, true
}

func (m *MeetingModel) updateChat(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "tab":
		m.chatFocused = false
		m.input.Blur()
		return nil
	case "enter":
		body := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if body == "" {
			return nil
		}
		return m.run("send chat", func(context.Context) error {
			return m.ctrl.SendChat(body)
		})
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *MeetingModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := fmt.Sprintf("%s Room %s", IconRoom, m.snap.RoomID)
	elapsed := utils.FormatTimeDuration(m.now().Sub(m.startedAt))
	b.WriteString(HeaderStyle.Render(title) + "  " + MutedStyle.Render(IconTime+" "+elapsed) + "\n\n")

	if m.leaving {
		b.WriteString(m.spinner.View() + " Leaving...\n\n")
	}
	b.WriteString(localStatus(m.snap.Local) + "\n")
	if m.snap.Notice != "" {
		b.WriteString(WarningStyle.Render(IconWarning+" "+m.snap.Notice) + "\n")
	}
	if m.status != "" {
		b.WriteString(ErrorStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n")

	rosterPanel, chatPanel := PanelStyle, FocusedPanelStyle
	if !m.chatFocused {
		rosterPanel, chatPanel = FocusedPanelStyle, PanelStyle
	}
	b.WriteString(rosterPanel.Render(RosterView(m.snap, m.selected)) + "\n")

	chat := strings.Join(chatLines(m.snap.Chat, m.chatRows(), m.width-6), "\n")
	if chat == "" {
		chat = MutedStyle.Render("No messages yet")
	}
	b.WriteString(chatPanel.Render(chat+"\n\n"+m.input.View()) + "\n")

	b.WriteString(FooterStyle.Render(helpLine(m.snap.IsHost, m.chatFocused)))
	return b.String()
}

func (m *MeetingModel) chatRows() int {
	rows := m.height - len(m.snap.Roster) - 18
	if rows < defaultChatRows {
		return defaultChatRows
	}
	return rows
}

// Summary describes the meeting once the view has exited.
func (m *MeetingModel) Summary() MeetingSummary {
	reason := m.reason
	if reason == "" {
		reason = "left"
	}
	return MeetingSummary{
		RoomID:       m.snap.RoomID,
		Reason:       reason,
		Duration:     utils.FormatTimeDuration(m.now().Sub(m.startedAt)),
		Participants: len(m.seen),
		Messages:     len(m.snap.Chat),
	}
}

func localStatus(local domain.LocalMediaState) string {
	mic := ErrorStyle.Render(IconMicOff + " muted")
	if local.MicEnabled {
		mic = SuccessStyle.Render(IconMicOn + " mic on")
	}

	var video string
	switch {
	case local.ScreenSharing:
		video = SuccessStyle.Render(IconScreen + " sharing screen")
	case local.ActiveVideoSource == domain.VideoSourceNone:
		video = WarningStyle.Render(IconCamOff + " no video")
	case local.CamEnabled:
		video = SuccessStyle.Render(IconCamOn + " camera on")
	default:
		video = ErrorStyle.Render(IconCamOff + " camera off")
	}
	return mic + "  " + video
}

// chatLines renders the newest rows messages, oldest first.
func chatLines(msgs []domain.ChatMessage, rows, width int) []string {
	if len(msgs) > rows {
		msgs = msgs[len(msgs)-rows:]
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		line := SenderStyle.Render(msg.SenderName+":") + " " + msg.Body
		if width > 0 {
			line = lipgloss.NewStyle().MaxWidth(width).Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func helpLine(isHost, chatFocused bool) string {
	if chatFocused {
		return "enter send • esc back • ctrl+c leave"
	}
	keys := []string{"m mic", "c camera", "s screen"}
	if isHost {
		keys = append(keys, "↑/↓ select", "k kick", "e end meeting")
	}
	keys = append(keys, "tab chat", "q leave")
	return strings.Join(keys, " • ")
}

// RunMeeting shows the meeting view until the meeting is over and returns
// its summary.
func RunMeeting(ctrl Controller, snaps <-chan domain.Snapshot) (MeetingSummary, error) {
	model := NewMeetingModel(ctrl, snaps)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return MeetingSummary{}, err
	}
	return model.Summary(), nil
}
