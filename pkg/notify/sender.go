package notify

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is a file sent along with a message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Message is an outbound notification before rendering
type Message struct {
	To          string                 `json:"to"`
	Subject     string                 `json:"subject"`
	Template    string                 `json:"template"`
	Context     map[string]interface{} `json:"context"`
	Attachments []Attachment           `json:"attachments,omitempty"`
}

// Validate checks the fields every sender needs
func (m *Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("recipient address is required")
	}
	if !strings.Contains(m.To, "@") {
		return fmt.Errorf("invalid recipient address: %s", m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if _, ok := templates[m.Template]; !ok {
		return fmt.Errorf("unknown template: %s", m.Template)
	}
	return nil
}

// Sender delivers notifications
type Sender interface {
	// Send delivers the message or returns why it could not
	Send(ctx context.Context, msg *Message) error

	// GetName returns the name of the sender implementation
	GetName() string
}
