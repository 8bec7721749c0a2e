package mail

import "strings"

// Message - письмо в том виде, в котором оно нужно индексатору
type Message struct {
	ID             string
	ThreadID       string
	MessageID      string // заголовок Message-ID
	Subject        string
	From           string
	To             string
	Date           string // сырой заголовок Date
	Snippet        string
	Body           string
	Labels         []string
	HasAttachments bool
	Attachments    []Attachment
}

// Attachment - вложение; Data заполняется только для скачанных вложений
type Attachment struct {
	ID       string
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// HasLabel проверяет метку Gmail (UNREAD, STARRED, SENT...)
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsPDF - вложение в формате PDF (по mime-типу или расширению)
func (a Attachment) IsPDF() bool {
	return a.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}
