package usecase

import (
	"encoding/base64"
	"strings"

	txdomain "finsight-backend/internal/transaction/domain"

	log "github.com/sirupsen/logrus"
)

// MessageHeaders are the header fields the classifier cares about.
type MessageHeaders struct {
	Subject    string
	Sender     string
	DateHeader string
}

// ExtractHeaders pulls subject, sender and date header from a message.
func ExtractHeaders(msg *txdomain.MailMessage) MessageHeaders {
	return MessageHeaders{
		Subject:    msg.Header("Subject"),
		Sender:     extractAddress(msg.Header("From")),
		DateHeader: msg.Header("Date"),
	}
}

// extractAddress reduces "Name <a@b.com>" to "a@b.com".
func extractAddress(from string) string {
	lt := strings.Index(from, "<")
	gt := strings.Index(from, ">")
	if lt >= 0 && gt > lt {
		return from[lt+1 : gt]
	}
	return from
}

// ExtractBody walks the message part tree, decodes every base64url leaf and
// joins the decoded text with newlines. Parts that fail to decode are logged
// and skipped; extraction itself never fails.
func ExtractBody(msg *txdomain.MailMessage) string {
	var body strings.Builder
	if msg.Payload != nil {
		extractBodyRecursive(msg.ID, msg.Payload, &body)
	}
	return body.String()
}

func extractBodyRecursive(messageID string, part *txdomain.MessagePart, body *strings.Builder) {
	if part.Data != "" {
		decoded, err := decodeBase64URL(part.Data)
		if err != nil {
			log.WithField("message_id", messageID).WithError(err).Debug("Failed to decode body part")
		} else {
			body.Write(decoded)
			body.WriteString("\n")
		}
	}
	for _, sub := range part.Parts {
		extractBodyRecursive(messageID, sub, body)
	}
}

// The provider emits unpadded base64url; some intermediaries re-pad it.
func decodeBase64URL(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}
