package mail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// ParseMessage переводит полное сообщение Gmail API в Message.
// Тело: text/plain, если есть, иначе text/html.
func ParseMessage(m *gmail.Message) *Message {
	msg := &Message{
		ID:        m.Id,
		ThreadID:  m.ThreadId,
		Snippet:   m.Snippet,
		Labels:    m.LabelIds,
		MessageID: m.Id,
	}
	if msg.ThreadID == "" {
		msg.ThreadID = m.Id
	}
	if m.Payload == nil {
		return msg
	}

	msg.Subject = headerValue(m.Payload, "Subject")
	msg.From = headerValue(m.Payload, "From")
	msg.To = headerValue(m.Payload, "To")
	msg.Date = headerValue(m.Payload, "Date")
	if id := headerValue(m.Payload, "Message-ID"); id != "" {
		msg.MessageID = id
	}

	var plain, html string
	walkParts(m.Payload, func(part *gmail.MessagePart) {
		if part.Body == nil {
			return
		}
		if part.Filename != "" && part.Body.AttachmentId != "" {
			msg.HasAttachments = true
			msg.Attachments = append(msg.Attachments, Attachment{
				ID:       part.Body.AttachmentId,
				Filename: part.Filename,
				MimeType: part.MimeType,
				Size:     part.Body.Size,
			})
			return
		}
		if part.Body.Data == "" {
			return
		}
		switch {
		case plain == "" && strings.HasPrefix(part.MimeType, "text/plain"):
			plain = part.Body.Data
		case html == "" && strings.HasPrefix(part.MimeType, "text/html"):
			html = part.Body.Data
		}
	})

	body := plain
	if body == "" {
		body = html
	}
	if body != "" {
		if decoded, err := decodeBase64(body); err == nil {
			msg.Body = string(decoded)
		}
	}

	return msg
}

// headerValue возвращает значение заголовка (без учёта регистра)
func headerValue(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// walkParts рекурсивно обходит части сообщения
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// decodeBase64 декодирует base64url (как отдаёт Gmail API), с запасными вариантами
func decodeBase64(data string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("failed to decode base64 data")
}
