package domain

import "strings"

// Header is a single mail header as returned by the provider.
type Header struct {
	Name  string
	Value string
}

// MessagePart is one node of a MIME part tree. Data carries the base64url
// encoded payload of leaf parts; container parts have child Parts instead.
type MessagePart struct {
	MimeType string
	Data     string
	Parts    []*MessagePart
}

// MailMessage is a provider message in full form. InternalDate is the
// provider's authoritative receive timestamp in epoch milliseconds.
type MailMessage struct {
	ID           string
	Headers      []Header
	Payload      *MessagePart
	InternalDate int64
}

// Header returns the value of the named header, case-insensitively.
func (m *MailMessage) Header(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
