package web

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mailer delivers login links.
type Mailer interface {
	Send(to, subject, body string) error
}

// OutboxMailer writes each message to a text file in Dir. A relay or an
// operator picks them up from there.
type OutboxMailer struct {
	Dir string
	Now func() time.Time
}

func (m OutboxMailer) Send(to, subject, body string) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return err
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ts := now().UTC().Format("20060102T150405.000000000Z")
	safeTo := strings.NewReplacer("@", "_at_", "/", "_", `\`, "_").Replace(strings.ToLower(strings.TrimSpace(to)))
	name := fmt.Sprintf("%s_%s.txt", ts, safeTo)
	msg := fmt.Sprintf("TO: %s\nSUBJECT: %s\n\n%s\n", strings.TrimSpace(to), strings.TrimSpace(subject), strings.TrimSpace(body))
	return os.WriteFile(filepath.Join(m.Dir, name), []byte(msg), 0o600)
}
