package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ohq-tools/ohqtui/internal/cache"
	"github.com/ohq-tools/ohqtui/internal/live"
	"github.com/ohq-tools/ohqtui/internal/ohq"
	"github.com/ohq-tools/ohqtui/internal/session"
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   *session.Session
	Store     *cache.Store
	Push      *live.Client
	ThemeName string
	TagFilter []string
	PrefsPath string
}

// Run starts the Bubble Tea program and blocks until the user quits
// or the context cancels.
func Run(opts Options) error {
	model := New(opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := program.Run()
	model.teardown()
	return err
}

// mode selects what the main pane shows.
type mode int

const (
	modeBrowse mode = iota // queue list + questions
	modeAsk                // student question form
	modeReject             // staff rejection reason picker
)

// toast is a transient notification line.
type toast struct {
	message string
	success bool
	seq     int
}

const toastDuration = 6 * time.Second

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx   context.Context
	sess  *session.Session
	store *cache.Store
	push  *live.Client

	// UI state
	theme     Theme
	styles    Styles
	width     int
	height    int
	ready     bool
	mode      mode
	prefsPath string

	// Live feeds
	storeCh chan string
	connCh  <-chan live.ConnState

	// Data state
	staff         bool
	connState     live.ConnState
	queues        []ohq.Queue
	queueIdx      int
	questions     []ohq.Question
	ownPosition   int
	boundPosition int64
	bindCancel    func()

	// Staff state
	selectedRow int
	tagFilter   []string

	// Forms
	askInput    textinput.Model
	tagInput    textinput.Model
	askFocusTag bool
	rejectIdx   int

	// Toast
	toast    *toast
	toastSeq int
}

// rejectionReasons mirror the server's accepted values. OTHER carries
// a detail string pointing the student at staff.
var rejectionReasons = []string{"NOT_HERE", "OH_ENDED", "NOT_SPECIFIC", "WRONG_QUEUE", "OTHER"}

// New creates the root model.
func New(opts Options) *Model {
	askInput := textinput.New()
	askInput.Placeholder = "What do you need help with?"
	askInput.CharLimit = 500
	askInput.Width = 60

	tagInput := textinput.New()
	tagInput.Placeholder = "tags (comma separated, optional)"
	tagInput.CharLimit = 120
	tagInput.Width = 60

	theme := GetTheme(opts.ThemeName)

	return &Model{
		ctx:         opts.Context,
		sess:        opts.Session,
		store:       opts.Store,
		push:        opts.Push,
		theme:       theme,
		styles:      theme.Styles(),
		prefsPath:   opts.PrefsPath,
		storeCh:     opts.Store.Watch(),
		connCh:      opts.Push.StateChanges(),
		staff:       opts.Session.IsStaff(),
		connState:   opts.Push.State(),
		tagFilter:   opts.TagFilter,
		ownPosition: -1,
		askInput:    askInput,
		tagInput:    tagInput,
	}
}

func (m *Model) teardown() {
	if m.bindCancel != nil {
		m.bindCancel()
	}
	m.store.Unwatch(m.storeCh)
}

// Messages

type storeChangedMsg string

type connStateMsg live.ConnState

type toastMsg struct {
	message string
	success bool
}

type toastClearMsg int

type refreshedMsg struct{}

// Commands

func (m *Model) watchStoreCmd() tea.Cmd {
	return func() tea.Msg {
		key, ok := <-m.storeCh
		if !ok {
			return nil
		}
		return storeChangedMsg(key)
	}
}

func (m *Model) watchConnCmd() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.connCh
		if !ok {
			return nil
		}
		return connStateMsg(state)
	}
}

// fetchQuestionsCmd loads the selected queue's questions in the
// background; results land in the store and arrive as a
// storeChangedMsg.
func (m *Model) fetchQuestionsCmd(queueID int64) tea.Cmd {
	questions := m.sess.Questions(queueID)
	ctx := m.ctx
	return func() tea.Msg {
		_, _ = questions.Get(ctx)
		return refreshedMsg{}
	}
}

func (m *Model) fetchPositionCmd(queueID, questionID int64) tea.Cmd {
	position := m.sess.Position(queueID, questionID)
	ctx := m.ctx
	return func() tea.Msg {
		_, _ = position.Get(ctx)
		return refreshedMsg{}
	}
}

// actionCmd runs a mutation and surfaces its outcome as a toast.
func (m *Model) actionCmd(success string, action func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := action(ctx); err != nil {
			return toastMsg{message: ohq.FriendlyMessage(err), success: false}
		}
		return toastMsg{message: success, success: true}
	}
}

func toastClearCmd(seq int) tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastClearMsg(seq)
	})
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.watchStoreCmd(),
		m.watchConnCmd(),
	}
	m.refreshQueues()
	if queue := m.currentQueue(); queue != nil {
		m.bindCancel = m.sess.BindQueue(queue.ID)
		cmds = append(cmds, m.fetchQuestionsCmd(queue.ID))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case storeChangedMsg:
		m.refreshQueues()
		m.refreshQuestions()
		return m, tea.Batch(m.watchStoreCmd(), m.ensurePositionCmd())

	case connStateMsg:
		m.connState = live.ConnState(msg)
		return m, m.watchConnCmd()

	case refreshedMsg:
		m.refreshQueues()
		m.refreshQuestions()
		return m, m.ensurePositionCmd()

	case toastMsg:
		m.toastSeq++
		m.toast = &toast{message: msg.message, success: msg.success, seq: m.toastSeq}
		return m, toastClearCmd(m.toastSeq)

	case toastClearMsg:
		if m.toast != nil && m.toast.seq == int(msg) {
			m.toast = nil
		}
		return m, nil
	}

	return m, nil
}

// refreshQueues re-reads the queue collection from the store.
func (m *Model) refreshQueues() {
	queues, _, ok := m.sess.Queues().Peek()
	if !ok {
		return
	}
	visible := queues[:0:0]
	for _, q := range queues {
		if !q.Archived {
			visible = append(visible, q)
		}
	}
	m.queues = visible
	if m.queueIdx >= len(m.queues) {
		m.queueIdx = 0
	}
}

// refreshQuestions re-reads the selected queue's questions.
func (m *Model) refreshQuestions() {
	queue := m.currentQueue()
	if queue == nil {
		m.questions = nil
		return
	}
	questions, _, ok := m.sess.Questions(queue.ID).Peek()
	if !ok {
		m.questions = nil
		return
	}
	m.questions = questions
	if own := m.ownQuestion(); own != nil {
		pos, _, ok := m.sess.Position(queue.ID, own.ID).Peek()
		if ok {
			m.ownPosition = pos.Position
		}
	} else {
		m.ownPosition = -1
	}
	if m.selectedRow >= len(m.staffQuestions()) {
		m.selectedRow = 0
	}
}

// ensurePositionCmd binds and primes the position read for the
// student's own question the first time it shows up in the cached
// collection, whether it was just asked or predates this run.
func (m *Model) ensurePositionCmd() tea.Cmd {
	if m.staff {
		return nil
	}
	queue := m.currentQueue()
	own := m.ownQuestion()
	if queue == nil || own == nil || m.boundPosition == own.ID {
		return nil
	}
	m.boundPosition = own.ID
	m.sess.BindPosition(queue.ID, own.ID)
	return m.fetchPositionCmd(queue.ID, own.ID)
}

func (m *Model) currentQueue() *ohq.Queue {
	if m.queueIdx < 0 || m.queueIdx >= len(m.queues) {
		return nil
	}
	return &m.queues[m.queueIdx]
}

// selectQueue rebinds subscriptions when the user changes queues.
func (m *Model) selectQueue(idx int) tea.Cmd {
	if idx < 0 || idx >= len(m.queues) || idx == m.queueIdx {
		return nil
	}
	if m.bindCancel != nil {
		m.bindCancel()
	}
	m.queueIdx = idx
	m.selectedRow = 0
	queue := m.currentQueue()
	m.bindCancel = m.sess.BindQueue(queue.ID)
	m.refreshQuestions()
	return m.fetchQuestionsCmd(queue.ID)
}
