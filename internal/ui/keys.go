package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ohq-tools/ohqtui/internal/derive"
	"github.com/ohq-tools/ohqtui/internal/ohq"
	"github.com/ohq-tools/ohqtui/internal/prefs"
)

// ownQuestion returns the logged-in student's open question, if any.
func (m *Model) ownQuestion() *ohq.Question {
	profile := m.sess.Profile()
	if profile == nil {
		return nil
	}
	return derive.OwnQuestion(m.questions, profile.ID)
}

// staffQuestions returns the staff-facing slice: visible, tag
// filtered, FIFO.
func (m *Model) staffQuestions() []ohq.Question {
	return derive.SortForStaff(m.questions, m.tagFilter)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAsk:
		return m.handleAskKey(msg)
	case modeReject:
		return m.handleRejectKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "T":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.styles = m.theme.Styles()
		m.savePrefs()
		return m, nil

	case "tab":
		return m, m.selectQueue((m.queueIdx + 1) % max(len(m.queues), 1))

	case "shift+tab":
		idx := m.queueIdx - 1
		if idx < 0 {
			idx = len(m.queues) - 1
		}
		return m, m.selectQueue(idx)
	}

	if m.staff {
		return m.handleStaffKey(msg)
	}
	return m.handleStudentKey(msg)
}

func (m *Model) handleStudentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	queue := m.currentQueue()
	if queue == nil {
		return m, nil
	}

	switch msg.String() {
	case "n":
		// Ask a new question; only when the queue is open and the
		// student has no open question already.
		if queue.Active && m.ownQuestion() == nil {
			m.mode = modeAsk
			m.askInput.SetValue("")
			m.tagInput.SetValue("")
			m.askFocusTag = false
			m.askInput.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case "w":
		own := m.ownQuestion()
		if own == nil {
			return m, nil
		}
		queueID, questionID := queue.ID, own.ID
		return m, m.actionCmd("Question withdrawn", func(ctx context.Context) error {
			return m.sess.Withdraw(ctx, queueID, questionID)
		})
	}
	return m, nil
}

func (m *Model) handleStaffKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	queue := m.currentQueue()
	if queue == nil {
		return m, nil
	}
	visible := m.staffQuestions()

	selected := func() *ohq.Question {
		if m.selectedRow < 0 || m.selectedRow >= len(visible) {
			return nil
		}
		return &visible[m.selectedRow]
	}

	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
		return m, nil

	case "down", "j":
		if m.selectedRow < len(visible)-1 {
			m.selectedRow++
		}
		return m, nil

	case "c", "enter":
		q := selected()
		if q == nil || q.Status == ohq.StatusStarted {
			return m, nil
		}
		queueID, questionID := queue.ID, q.ID
		return m, m.actionCmd("Question claimed", func(ctx context.Context) error {
			return m.sess.Claim(ctx, queueID, questionID)
		})

	case "a":
		q := selected()
		if q == nil || q.Status != ohq.StatusStarted {
			return m, nil
		}
		queueID, questionID := queue.ID, q.ID
		return m, m.actionCmd("Question answered", func(ctx context.Context) error {
			return m.sess.Answer(ctx, queueID, questionID)
		})

	case "u":
		q := selected()
		if q == nil || q.Status != ohq.StatusStarted {
			return m, nil
		}
		queueID, questionID := queue.ID, q.ID
		return m, m.actionCmd("Question returned to queue", func(ctx context.Context) error {
			return m.sess.Unclaim(ctx, queueID, questionID)
		})

	case "r":
		if selected() != nil {
			m.mode = modeReject
			m.rejectIdx = 0
		}
		return m, nil

	case "o":
		queueID, active := queue.ID, !queue.Active
		label := "Queue opened"
		if !active {
			label = "Queue closed"
		}
		return m, m.actionCmd(label, func(ctx context.Context) error {
			return m.sess.SetQueueActive(ctx, queueID, active)
		})

	case "X":
		queueID := queue.ID
		return m, m.actionCmd("Queue cleared", func(ctx context.Context) error {
			return m.sess.ClearQueue(ctx, queueID)
		})

	case "f":
		m.cycleTagFilter(queue.Tags)
		return m, nil
	}
	return m, nil
}

// cycleTagFilter steps through single-tag filters then back to "all".
// The filter value is immutable from the handlers' point of view: a
// new slice replaces the old one, never mutation in place.
func (m *Model) cycleTagFilter(available []string) {
	if len(available) == 0 {
		m.tagFilter = nil
		return
	}
	if len(m.tagFilter) == 0 {
		m.tagFilter = []string{available[0]}
	} else {
		current := -1
		for i, tag := range available {
			if tag == m.tagFilter[0] {
				current = i
				break
			}
		}
		if current < 0 || current == len(available)-1 {
			m.tagFilter = nil
		} else {
			m.tagFilter = []string{available[current+1]}
		}
	}
	m.selectedRow = 0
	m.savePrefs()
}

func (m *Model) handleAskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.askInput.Blur()
		m.tagInput.Blur()
		return m, nil

	case "tab", "shift+tab":
		m.askFocusTag = !m.askFocusTag
		if m.askFocusTag {
			m.askInput.Blur()
			m.tagInput.Focus()
		} else {
			m.tagInput.Blur()
			m.askInput.Focus()
		}
		return m, nil

	case "enter":
		queue := m.currentQueue()
		text := strings.TrimSpace(m.askInput.Value())
		if queue == nil || text == "" {
			return m, nil
		}
		tags := splitTags(m.tagInput.Value())
		m.mode = modeBrowse
		m.askInput.Blur()
		m.tagInput.Blur()
		queueID := queue.ID
		return m, m.actionCmd("Question asked", func(ctx context.Context) error {
			_, err := m.sess.Ask(ctx, queueID, text, tags)
			return err
		})
	}

	var cmd tea.Cmd
	if m.askFocusTag {
		m.tagInput, cmd = m.tagInput.Update(msg)
	} else {
		m.askInput, cmd = m.askInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleRejectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		return m, nil

	case "up", "k":
		if m.rejectIdx > 0 {
			m.rejectIdx--
		}
		return m, nil

	case "down", "j":
		if m.rejectIdx < len(rejectionReasons)-1 {
			m.rejectIdx++
		}
		return m, nil

	case "enter":
		queue := m.currentQueue()
		visible := m.staffQuestions()
		if queue == nil || m.selectedRow >= len(visible) {
			m.mode = modeBrowse
			return m, nil
		}
		reason := rejectionReasons[m.rejectIdx]
		other := ""
		if reason == "OTHER" {
			other = "See staff for details"
		}
		queueID, questionID := queue.ID, visible[m.selectedRow].ID
		m.mode = modeBrowse
		return m, m.actionCmd("Question rejected", func(ctx context.Context) error {
			return m.sess.Reject(ctx, queueID, questionID, reason, other)
		})
	}
	return m, nil
}

func (m *Model) savePrefs() {
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Tags: m.tagFilter})
}

func splitTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
