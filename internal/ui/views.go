package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ohq-tools/ohqtui/internal/derive"
	"github.com/ohq-tools/ohqtui/internal/lifecycle"
	"github.com/ohq-tools/ohqtui/internal/ohq"
)

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if banner := m.renderConnectionBanner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	switch m.mode {
	case modeAsk:
		b.WriteString(m.renderAskForm())
	case modeReject:
		b.WriteString(m.renderRejectPicker())
	default:
		if m.staff {
			b.WriteString(m.renderStaffView())
		} else {
			b.WriteString(m.renderStudentView())
		}
	}

	b.WriteString("\n")
	if m.toast != nil {
		b.WriteString(m.renderToast())
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows the queue tabs and the selected queue's
// server-computed stats.
func (m *Model) renderHeader() string {
	queue := m.currentQueue()
	if queue == nil {
		return m.styles.Header.Render("No queues in this course")
	}

	var tabs []string
	for i, q := range m.queues {
		name := q.Name
		if i == m.queueIdx {
			tabs = append(tabs, m.styles.Selected.Render(" "+name+" "))
		} else {
			tabs = append(tabs, m.styles.MutedText.Render(" "+name+" "))
		}
	}

	var stats []string
	stats = append(stats, fmt.Sprintf("%s in queue", plural(queue.QuestionsAsked, "user")))
	stats = append(stats, fmt.Sprintf("%s currently being helped", plural(queue.QuestionsActive, "user")))
	if wait := derive.FormatWaitTime(queue.EstimatedWaitTime); wait != "" {
		stats = append(stats, wait+" wait")
	}
	if queue.Active {
		stats = append(stats, fmt.Sprintf("%d staff active", queue.StaffActive))
	} else {
		stats = append(stats, "closed")
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	line2 := m.styles.Header.Render(strings.Join(stats, " · "))
	return line1 + "\n" + line2
}

// renderConnectionBanner warns that displayed data may be stale while
// the push channel is down.
func (m *Model) renderConnectionBanner() string {
	if m.push.Connected() {
		return ""
	}
	return m.styles.Banner.Render(
		fmt.Sprintf("Connection lost (%s): data may be out of date", m.connState))
}

func (m *Model) renderStudentView() string {
	queue := m.currentQueue()
	own := m.ownQuestion()

	if own != nil {
		return m.renderOwnQuestion(own)
	}
	if queue != nil && !queue.Active {
		return m.styles.DangerText.Render("Queue Closed") + "\n" +
			m.styles.MutedText.Render("This queue is currently closed. Contact course staff if you think this is an error.")
	}
	return m.styles.Text.Render("The queue is open.") + "\n" +
		m.styles.MutedText.Render("Press n to ask a question.")
}

func (m *Model) renderOwnQuestion(q *ohq.Question) string {
	var b strings.Builder
	badge := m.styles.StatusStyle(strings.ToLower(string(q.Status))).Render(strings.ToLower(string(q.Status)))
	b.WriteString(badge)
	b.WriteString("  ")
	b.WriteString(m.styles.Text.Render(q.Text))
	b.WriteString("\n")
	if len(q.Tags) > 0 {
		b.WriteString(m.styles.FaintText.Render("tags: " + strings.Join(q.Tags, ", ")))
		b.WriteString("\n")
	}
	switch {
	case lifecycle.Waiting(q.Status):
		if m.ownPosition >= 0 {
			b.WriteString(m.styles.AccentText.Render(
				fmt.Sprintf("Position in line: %d", m.ownPosition+1)))
		} else {
			b.WriteString(m.styles.MutedText.Render("Waiting in line..."))
		}
	case q.Status == ohq.StatusStarted:
		who := "a staff member"
		if q.AnsweredBy != nil && q.AnsweredBy.FirstName != "" {
			who = q.AnsweredBy.FirstName
		}
		b.WriteString(m.styles.SuccessText.Render(who + " is coming to help you!"))
		if q.VideoChatURL != "" {
			b.WriteString("\n")
			b.WriteString(m.styles.InfoText.Render("Join: " + q.VideoChatURL))
		}
	}
	return b.String()
}

func (m *Model) renderStaffView() string {
	visible := m.staffQuestions()
	if len(visible) == 0 {
		if len(m.tagFilter) > 0 {
			return m.styles.MutedText.Render(
				fmt.Sprintf("No questions matching tag filter %v. Press f to cycle.", m.tagFilter))
		}
		return m.styles.MutedText.Render("No questions waiting.")
	}

	var b strings.Builder
	if len(m.tagFilter) > 0 {
		b.WriteString(m.styles.FaintText.Render("filter: " + strings.Join(m.tagFilter, ", ")))
		b.WriteString("\n")
	}
	for i, q := range visible {
		badge := m.styles.StatusStyle(strings.ToLower(string(q.Status))).Render(strings.ToLower(string(q.Status)))
		who := q.AskedBy.FirstName
		if who == "" {
			who = q.AskedBy.Username
		}
		line := fmt.Sprintf("%s  %s: %s", badge, m.styles.Text.Render(who), q.Text)
		if len(q.Tags) > 0 {
			line += "  " + m.styles.FaintText.Render("["+strings.Join(q.Tags, ", ")+"]")
		}
		if i == m.selectedRow {
			line = m.styles.Selected.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderAskForm() string {
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render("Ask a question"))
	b.WriteString("\n\n")
	b.WriteString(m.askInput.View())
	b.WriteString("\n")
	b.WriteString(m.tagInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.styles.FaintText.Render("enter submit · tab switch field · esc cancel"))
	return b.String()
}

func (m *Model) renderRejectPicker() string {
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Render("Reject reason"))
	b.WriteString("\n\n")
	for i, reason := range rejectionReasons {
		if i == m.rejectIdx {
			b.WriteString(m.styles.Selected.Render("> " + reason))
		} else {
			b.WriteString(m.styles.MutedText.Render("  " + reason))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.FaintText.Render("enter confirm · esc cancel"))
	return b.String()
}

func (m *Model) renderToast() string {
	if m.toast.success {
		return m.styles.SuccessText.Render(m.toast.message)
	}
	return m.styles.DangerText.Render(m.toast.message)
}

func (m *Model) renderFooter() string {
	var keys string
	if m.staff {
		keys = "↑/↓ select · c claim · a answer · u unclaim · r reject · o open/close · X clear · f filter · tab queue · T theme · q quit"
	} else {
		keys = "n ask · w withdraw · tab queue · T theme · q quit"
	}
	return m.styles.Footer.Render(keys)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
