package operator

import (
	"context"
	"fmt"
	"strings"
)

// Notification is one outbound hand-off to the human operator channel. The
// session id is embedded as a "Session: <id>" line so an operator reply that
// quotes the notification can be routed back.
type Notification struct {
	SessionId string
	Kind      string // "escalated" | "closed" | "forward"
	Summary   string
	Subject   string   // human-readable subject context, may be empty
	Excerpt   []string // recent messages, already formatted "role: text"
}

// Notifier delivers a notification to the operator channel. Implementations
// must bound their own timeout; callers never wait on delivery from the
// visitor-facing request path.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Format renders the single human-readable message sent to the channel.
func Format(n Notification) string {
	var b strings.Builder

	switch n.Kind {
	case "forward":
		b.WriteString("💬 Customer message\n")
	case "closed":
		b.WriteString("✅ Conversation closed\n")
	default:
		b.WriteString("🔔 Support hand-off\n")
	}

	fmt.Fprintf(&b, "Session: %s\n", n.SessionId)
	if n.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", n.Subject)
	}
	if n.Summary != "" {
		fmt.Fprintf(&b, "%s\n", n.Summary)
	}
	if len(n.Excerpt) > 0 {
		b.WriteString("\nRecent messages:\n")
		for _, line := range n.Excerpt {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
