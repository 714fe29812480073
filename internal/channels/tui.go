// Package channels holds the interactive surfaces of dy. The terminal UI
// is the only surface: a Bubble Tea program with a transcript viewport, a
// mode-aware input box, and the approval panel for mutating tasks.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raytonc/dy/internal/workflow"
)

// ─────────────────────────────────────────────────────
// TUI Channel — drives the workflow engine
// ─────────────────────────────────────────────────────

// TUIChannel bridges the Bubble Tea program with the workflow engine. It
// implements workflow.UI and workflow.Approver, so engine progress and the
// approval prompt land in the transcript via program.Send.
type TUIChannel struct {
	logger  *slog.Logger
	engine  *workflow.Engine
	sandbox string
	program *tea.Program

	mu        sync.Mutex
	cancelRun context.CancelFunc
}

// NewTUI creates the terminal UI channel. sandbox is shown in the header
// so the user always sees the scope of every request.
func NewTUI(logger *slog.Logger, engine *workflow.Engine, sandbox string) *TUIChannel {
	return &TUIChannel{
		logger:  logger.With("channel", "tui"),
		engine:  engine,
		sandbox: sandbox,
	}
}

func (t *TUIChannel) Name() string { return "tui" }

// Run blocks until the user quits or ctx is cancelled.
func (t *TUIChannel) Run(ctx context.Context) error {
	model := newTUIModel(t)
	t.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	t.logger.Info("TUI started", "sandbox", t.sandbox)
	_, err := t.program.Run()
	t.cancelActive()
	return err
}

// submit starts a workflow for the given mode. One runs at a time; the
// engine rejects overlap on its own, but the model also gates input while
// running so overlap never happens in practice.
func (t *TUIChannel) submit(mode, text string) {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancelRun = cancel
	t.mu.Unlock()

	go func() {
		defer cancel()
		var err error
		if mode == modeTask {
			err = t.engine.Task(ctx, text, t, t)
		} else {
			err = t.engine.Query(ctx, text, t)
		}
		if err != nil {
			t.logger.Debug("workflow returned error", "mode", mode, "error", err)
		}
		t.mu.Lock()
		t.cancelRun = nil
		t.mu.Unlock()
		t.program.Send(runDoneMsg{})
	}()
}

// cancelActive cancels the in-flight workflow, if any.
func (t *TUIChannel) cancelActive() {
	t.mu.Lock()
	cancel := t.cancelRun
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ── workflow.UI ──

func (t *TUIChannel) Display(msg string)       { t.program.Send(displayMsg{text: msg}) }
func (t *TUIChannel) DisplayError(msg string)  { t.program.Send(errorMsg{text: msg}) }
func (t *TUIChannel) DisplayScript(src string) { t.program.Send(scriptMsg{script: src}) }
func (t *TUIChannel) Status(status string)     { t.program.Send(statusMsg{text: status}) }

// ── workflow.Approver ──

// RequestApproval blocks the workflow goroutine until the user answers in
// the TUI or the workflow context is cancelled.
func (t *TUIChannel) RequestApproval(ctx context.Context, explanation, script string) (bool, error) {
	reply := make(chan bool, 1)
	t.program.Send(approvalMsg{explanation: explanation, script: script, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ─────────────────────────────────────────────────────
// Bubble Tea messages
// ─────────────────────────────────────────────────────

type displayMsg struct{ text string }
type errorMsg struct{ text string }
type scriptMsg struct{ script string }
type statusMsg struct{ text string }
type runDoneMsg struct{}

type approvalMsg struct {
	explanation string
	script      string
	reply       chan bool
}

// ─────────────────────────────────────────────────────
// Styles
// ─────────────────────────────────────────────────────

const (
	modeQuery = "query"
	modeTask  = "task"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED") // violet
	accentColor  = lipgloss.Color("#06B6D4") // cyan
	mutedColor   = lipgloss.Color("#6B7280") // gray
	successColor = lipgloss.Color("#10B981") // green
	errorColor   = lipgloss.Color("#EF4444") // red
	warnColor    = lipgloss.Color("#F59E0B") // amber

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	sandboxStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	transcriptBorder = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(accentColor)

	userStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	scriptStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	modeQueryStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	modeTaskStyle = lipgloss.NewStyle().
			Foreground(warnColor).
			Bold(true)

	approvalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(warnColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// ─────────────────────────────────────────────────────
// TUI Model
// ─────────────────────────────────────────────────────

type tuiModel struct {
	channel    *TUIChannel
	input      textarea.Model
	transcript viewport.Model
	entries    []transcriptEntry
	mode       string
	status     string
	running    bool
	approval   *approvalMsg
	width      int
	height     int
	ready      bool
}

type transcriptEntry struct {
	kind    string // "user", "answer", "error", "script"
	content string
	time    time.Time
}

func newTUIModel(ch *TUIChannel) tuiModel {
	ti := textarea.New()
	ti.Placeholder = "Ask about your files..."
	ti.Focus()
	ti.CharLimit = workflow.MaxInputLength
	ti.SetHeight(3)
	ti.ShowLineNumbers = false
	ti.KeyMap.InsertNewline.SetEnabled(false) // Enter submits

	return tuiModel{
		channel: ch,
		input:   ti,
		mode:    modeQuery,
		entries: []transcriptEntry{},
	}
}

func (m tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+q":
			m.channel.cancelActive()
			return m, tea.Quit

		case "ctrl+c":
			// Cancel a running workflow; quit when nothing runs.
			if m.running {
				m.channel.cancelActive()
				return m, nil
			}
			return m, tea.Quit

		case "tab":
			// Mode switches only while idle so a running workflow keeps
			// the mode it started with.
			if !m.running && m.approval == nil {
				if m.mode == modeQuery {
					m.mode = modeTask
					m.input.Placeholder = "Describe the change to make..."
				} else {
					m.mode = modeQuery
					m.input.Placeholder = "Ask about your files..."
				}
			}
			return m, nil

		case "y", "Y":
			if m.approval != nil {
				m.approval.reply <- true
				m.approval = nil
				m.status = ""
				return m, nil
			}

		case "n", "N":
			if m.approval != nil {
				m.approval.reply <- false
				m.approval = nil
				m.status = ""
				return m, nil
			}

		case "enter":
			if m.running || m.approval != nil {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.entries = append(m.entries, transcriptEntry{kind: "user", content: text, time: time.Now()})
			m.running = true
			m.status = "Starting..."
			m.input.Reset()
			m.input.Blur()
			m.refreshTranscript()
			m.channel.submit(m.mode, text)
			return m, nil
		}

	case displayMsg:
		m.entries = append(m.entries, transcriptEntry{kind: "answer", content: msg.text, time: time.Now()})
		m.refreshTranscript()
		return m, nil

	case errorMsg:
		m.entries = append(m.entries, transcriptEntry{kind: "error", content: msg.text, time: time.Now()})
		m.refreshTranscript()
		return m, nil

	case scriptMsg:
		m.entries = append(m.entries, transcriptEntry{kind: "script", content: msg.script, time: time.Now()})
		m.refreshTranscript()
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case approvalMsg:
		pending := msg
		m.approval = &pending
		m.status = "Approve? (y/n)"
		return m, nil

	case runDoneMsg:
		m.running = false
		m.status = ""
		// An approval prompt left behind by a cancelled workflow is stale.
		m.approval = nil
		m.input.Focus()
		return m, textarea.Blink

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		transcriptW := m.width - 2
		transcriptH := m.height - 10 // header + status + input + footer

		if !m.ready {
			m.transcript = viewport.New(transcriptW, transcriptH)
			m.ready = true
		} else {
			m.transcript.Width = transcriptW
			m.transcript.Height = transcriptH
		}
		m.refreshTranscript()
		m.input.SetWidth(transcriptW)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *tuiModel) refreshTranscript() {
	if !m.ready {
		return
	}
	m.transcript.SetContent(renderTranscript(m.entries))
	m.transcript.GotoBottom()
}

func (m tuiModel) View() string {
	if !m.ready {
		return "Starting dy..."
	}

	header := headerStyle.Render(" dy ") + " " +
		sandboxStyle.Render(m.channel.sandbox) + "  " + m.renderMode()

	body := transcriptBorder.Width(m.width - 2).Render(m.transcript.View())

	var panel string
	if m.approval != nil {
		panel = m.renderApproval()
	}

	status := ""
	if m.status != "" {
		status = statusStyle.Render("  " + m.status)
	}

	footer := footerStyle.Render(
		"  Enter: submit │ Tab: mode │ Ctrl+C: cancel │ Ctrl+Q: quit",
	)

	parts := []string{header, body}
	if panel != "" {
		parts = append(parts, panel)
	}
	parts = append(parts, status, m.input.View(), footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m tuiModel) renderMode() string {
	if m.mode == modeTask {
		return modeTaskStyle.Render("[TASK]")
	}
	return modeQueryStyle.Render("[QUERY]")
}

func (m tuiModel) renderApproval() string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(warnColor).Render("Proposed change"))
	sb.WriteString("\n")
	sb.WriteString(answerStyle.Render(m.approval.explanation))
	sb.WriteString("\n\n")
	sb.WriteString(scriptStyle.Render(m.approval.script))
	sb.WriteString("\n\n")
	sb.WriteString(statusStyle.Render("Apply this change? [y]es / [n]o"))
	return approvalStyle.Width(m.width - 2).Render(sb.String())
}

// ─────────────────────────────────────────────────────
// Rendering helpers
// ─────────────────────────────────────────────────────

func renderTranscript(entries []transcriptEntry) string {
	if len(entries) == 0 {
		return lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(1).
			Render("Ask a question about your files, or press Tab to switch to task mode.")
	}

	var sb strings.Builder
	for _, e := range entries {
		ts := lipgloss.NewStyle().Foreground(mutedColor).Render(e.time.Format("15:04"))
		switch e.kind {
		case "user":
			sb.WriteString(fmt.Sprintf("%s %s %s\n", ts, userStyle.Render("[You]"), answerStyle.Render(e.content)))
		case "error":
			sb.WriteString(fmt.Sprintf("%s %s\n", ts, errorStyle.Render(e.content)))
		case "script":
			sb.WriteString(fmt.Sprintf("%s %s\n%s\n", ts, userStyle.Render("[script]"), scriptStyle.Render(e.content)))
		default:
			sb.WriteString(fmt.Sprintf("%s %s\n%s\n", ts, userStyle.Render("[dy]"), answerStyle.Render(e.content)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
