package chat

import (
	"regexp"
	"strings"
	"time"

	"github.com/agentoven/console/pkg/models"
)

const (
	exportSeparator = "\n\n---\n\n"
	exportTimeFmt   = "Jan 2, 2006, 3:04:05 PM"
)

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HandleExportChat renders the current session as a plain-text transcript.
// ok is false when there is no current session or it has no messages.
func (m *Manager) HandleExportChat() (filename string, doc []byte, ok bool) {
	m.mu.Lock()
	sess := m.findLocked(m.currentID)
	if sess == nil || len(sess.Messages) == 0 {
		m.mu.Unlock()
		return "", nil, false
	}
	snap := sess.Clone()
	m.mu.Unlock()

	agentName := ""
	if a, found := m.agents.Get(snap.AgentID); found {
		agentName = a.Name
	}

	blocks := make([]string, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		blocks = append(blocks, renderBlock(msg, agentName))
	}
	return exportFilename(snap.Title), []byte(strings.Join(blocks, exportSeparator) + "\n"), true
}

func renderBlock(msg models.Message, agentName string) string {
	label := "User"
	if msg.Role == models.RoleModel {
		switch {
		case msg.AgentName != "":
			label = msg.AgentName
		case agentName != "":
			label = agentName
		default:
			label = "Model"
		}
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(label)
	b.WriteString("] ")
	b.WriteString(msg.Timestamp.In(time.Local).Format(exportTimeFmt))
	b.WriteString("\n\n")
	b.WriteString(msg.Text)
	for _, a := range msg.Attachments {
		b.WriteString("\n(attachment: ")
		b.WriteString(a.Name)
		b.WriteString(")")
	}
	return b.String()
}

// exportFilename lowercases the title and collapses everything that is not
// a letter or digit into single underscores.
func exportFilename(title string) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if name == "" {
		name = "chat"
	}
	return name + ".txt"
}
