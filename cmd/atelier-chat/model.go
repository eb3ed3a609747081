package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"atelier/pkg/config"
	"atelier/pkg/protocol"
)

// mode selects how keys are interpreted.
type mode int

const (
	// modeCompose is the default: typing goes to the input field.
	modeCompose mode = iota
	// modeSelect moves a cursor over the conversation to pick a revert
	// target or retry a failed send.
	modeSelect
)

// resultMsg carries one task result from the delivery goroutine.
type resultMsg protocol.TaskResult

// refreshMsg asks the model to re-read coordinator state.
type refreshMsg struct{}

// historyMsg reports the initial history load.
type historyMsg struct {
	agentID string
	err     error
}

// docMsg reports a wholesale document replacement.
type docMsg json.RawMessage

// revertDoneMsg reports the outcome of a revert.
type revertDoneMsg struct{ err error }

// configMsg carries a reloaded configuration.
type configMsg config.Config

// Model is the bubbletea model for the chat client.
type Model struct {
	app *app

	mode  mode
	input textinput.Model
	vp    viewport.Model
	spin  spinner.Model

	messages   []protocol.Message
	processing bool
	cursor     int // selected message in modeSelect
	status     string
	width      int
	height     int
	ready      bool
}

// newModel creates the chat model around a wired app.
func newModel(a *app) Model {
	ti := textinput.New()
	ti.Placeholder = "ask the assistant..."
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		app:    a,
		input:  ti,
		spin:   sp,
		status: "loading history...",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		loadHistoryCmd(m.app),
		waitForResult(m.app),
		waitForDoc(m.app),
		watchConfigDir(m.app.home),
	)
}

// --- commands ---

// loadHistoryCmd resolves the scope's agent and loads its persisted history
// into the coordinator. It runs at startup and again whenever the document is
// replaced; while a revert is applying its truncation the reload is skipped,
// since it would clobber the prefix the revert just installed.
func loadHistoryCmd(a *app) tea.Cmd {
	return func() tea.Msg {
		if a.coord.Reverting() {
			return nil
		}
		ctx := context.Background()
		agentID, err := a.manager.ResolveAgent(ctx, a.scope)
		if err != nil {
			return historyMsg{err: err}
		}
		agentID, msgs, err := a.manager.LoadHistory(ctx, a.scope, agentID, a.cfg.HistoryLimit)
		if err != nil {
			return historyMsg{err: err}
		}
		a.coord.SetAgent(agentID)
		a.coord.SetMessages(msgs)
		return historyMsg{agentID: agentID}
	}
}

// waitForResult blocks on the delivery queue and hands the next result to the
// event loop.
func waitForResult(a *app) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-a.results
		if !ok {
			return nil
		}
		return resultMsg(res)
	}
}

// waitForDoc blocks on document-replacement notifications.
func waitForDoc(a *app) tea.Cmd {
	return func() tea.Msg {
		doc, ok := <-a.docs
		if !ok {
			return nil
		}
		return docMsg(doc)
	}
}

// handleResultCmd reconciles one result through the coordinator. The api_call
// leg may hit the network, so it runs as a command, not in Update.
func handleResultCmd(a *app, res protocol.TaskResult) tea.Cmd {
	return func() tea.Msg {
		a.coord.OnResult(context.Background(), res)
		return refreshMsg{}
	}
}

// submitCmd submits a prompt through the pipeline.
func submitCmd(a *app, text string) tea.Cmd {
	return func() tea.Msg {
		a.coord.Submit(context.Background(), text)
		return refreshMsg{}
	}
}

// revertCmd reverts the conversation to before the message at index.
func revertCmd(a *app, index int) tea.Cmd {
	return func() tea.Msg {
		return revertDoneMsg{err: a.coord.RevertTo(context.Background(), index)}
	}
}

// retryCmd resubmits an abandoned pending request.
func retryCmd(a *app, pendingID string) tea.Cmd {
	return func() tea.Msg {
		if err := a.coord.Retry(context.Background(), pendingID); err != nil {
			return revertDoneMsg{err: err}
		}
		return refreshMsg{}
	}
}

// reloadConfigCmd re-reads the config file after a filesystem change.
func reloadConfigCmd(a *app) tea.Cmd {
	return func() tea.Msg {
		cfg, err := config.LoadDir(a.home)
		if err != nil {
			return nil // keep the running config
		}
		return configMsg(cfg)
	}
}

// --- update ---

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.syncViewport()

	case historyMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("history load failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("agent %s", shortID(msg.agentID))
		return m.refresh(), nil

	case resultMsg:
		return m, tea.Batch(
			handleResultCmd(m.app, protocol.TaskResult(msg)),
			waitForResult(m.app),
		)

	case refreshMsg:
		return m.refresh(), nil

	case docMsg:
		m.status = fmt.Sprintf("site updated %s", time.Now().Format("15:04:05"))
		return m, tea.Batch(loadHistoryCmd(m.app), waitForDoc(m.app))

	case revertDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("revert failed: %v", msg.err)
		} else {
			m.status = "reverted"
		}
		m.mode = modeCompose
		m.input.Focus()
		return m.refresh(), nil

	case fsChangeMsg:
		return m, tea.Batch(reloadConfigCmd(m.app), watchConfigDir(m.app.home))

	case configMsg:
		m.app.cfg = config.Config(msg)
		m.app.coord.SetPage(m.app.cfg.PageID)
		m.status = "config reloaded"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh re-reads coordinator state into the view.
func (m Model) refresh() Model {
	m.messages = m.app.coord.Messages()
	m.processing = m.app.coord.Processing()
	if d := m.app.coord.Draft(); d != "" {
		m.input.SetValue(d)
		m.input.CursorEnd()
	}
	if m.cursor >= len(m.messages) {
		m.cursor = len(m.messages) - 1
	}
	m.syncViewport()
	return m
}

// handleKey processes keyboard input per mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.mode == modeSelect {
		return m.handleSelectKeys(key)
	}
	return m.handleComposeKeys(key, msg)
}

// handleComposeKeys processes input-mode keys.
func (m Model) handleComposeKeys(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		if m.input.Value() == "" {
			return m, tea.Quit
		}
		m.input.SetValue("")
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.processing {
			return m, nil
		}
		m.input.SetValue("")
		return m, submitCmd(m.app, text)
	case "ctrl+r":
		if len(m.messages) == 0 {
			return m, nil
		}
		m.mode = modeSelect
		m.cursor = len(m.messages) - 1
		m.input.Blur()
		m.syncViewport()
		return m, nil
	case "pgup":
		m.vp.HalfViewUp()
		return m, nil
	case "pgdown":
		m.vp.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSelectKeys processes revert-selection keys.
func (m Model) handleSelectKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.mode = modeCompose
		m.input.Focus()
		m.syncViewport()
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.syncViewport()
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.messages)-1 {
			m.cursor++
			m.syncViewport()
		}
		return m, nil
	case "enter":
		if m.cursor < 0 || m.cursor >= len(m.messages) {
			return m, nil
		}
		// A retryable error message resubmits its pending request;
		// anything else is a revert target.
		if rid := m.messages[m.cursor].RetryID; rid != "" {
			m.status = "retrying..."
			return m, retryCmd(m.app, rid)
		}
		m.status = "reverting..."
		return m, revertCmd(m.app, m.cursor)
	}
	return m, nil
}

// resizeViewport lays the viewport out under the header and above the input.
func (m *Model) resizeViewport() {
	const chromeLines = 4 // header, status, input, help
	h := m.height - chromeLines
	if h < 1 {
		h = 1
	}
	if !m.ready {
		m.vp = viewport.New(m.width, h)
		m.ready = true
		return
	}
	m.vp.Width = m.width
	m.vp.Height = h
}

// syncViewport re-renders the conversation into the viewport.
func (m *Model) syncViewport() {
	if !m.ready {
		return
	}
	selecting := m.mode == modeSelect
	m.vp.SetContent(renderConversation(m.messages, m.cursor, selecting, m.spin.View(), m.vp.Width))
	if selecting {
		return // keep the cursor line stable while selecting
	}
	m.vp.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}
	return strings.Join([]string{
		renderHeader(m.app.scope, m.app.cfg.ChannelURL != "", m.width),
		m.vp.View(),
		renderStatus(m.status, m.processing, m.spin.View()),
		m.input.View(),
		renderHelp(m.mode),
	}, "\n")
}

// shortID trims uuids for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
