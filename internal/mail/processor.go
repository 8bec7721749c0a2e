package mail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"

	"mailrag/internal/chunker"
)

// Ключи метаданных документа письма
const (
	MetaEmailID    = "email_id"
	MetaMessageID  = "message_id"
	MetaThreadID   = "thread_id"
	MetaSubject    = "subject"
	MetaSender     = "sender"
	MetaDate       = "date"
	MetaSource     = "source"
	MetaAttachment = "attachment"

	SourceGmail      = "gmail"
	SourceAttachment = "gmail_attachment"
)

// Processor готовит письма к индексации
type Processor struct {
	splitter chunker.Chunker
}

// NewProcessor создаёт процессор с заданным chunker'ом
func NewProcessor(splitter chunker.Chunker) *Processor {
	return &Processor{splitter: splitter}
}

// Documents строит по документу на письмо (и на каждое скачанное PDF-вложение).
// Пустые письма пропускаются.
func (p *Processor) Documents(messages []*Message) []chunker.Document {
	var docs []chunker.Document
	skipped := 0

	for _, m := range messages {
		subject := m.Subject
		if subject == "" {
			subject = "No Subject"
		}

		body := strings.TrimSpace(m.Body)
		if body == "" {
			body = strings.TrimSpace(m.Snippet)
		}
		body = CleanText(body)

		metadata := emailMetadata(m, subject)

		if body == "" {
			skipped++
		} else {
			docs = append(docs, chunker.Document{
				Text:     fmt.Sprintf("Subject: %s\n\nContent: %s", subject, body),
				Metadata: metadata,
			})
		}

		for _, att := range m.Attachments {
			if len(att.Data) == 0 || !att.IsPDF() {
				continue
			}
			text, err := PDFText(att.Data)
			if err != nil {
				log.Warn("skipping pdf attachment", "message", m.ID, "file", att.Filename, "err", err)
				continue
			}
			text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
			if text == "" {
				continue
			}

			attMeta := chunker.CopyMetadata(metadata)
			attMeta[MetaAttachment] = att.Filename
			attMeta[MetaSource] = SourceAttachment
			docs = append(docs, chunker.Document{
				Text:     fmt.Sprintf("Attachment: %s\nSubject: %s\n\nContent: %s", att.Filename, subject, text),
				Metadata: attMeta,
			})
		}
	}

	log.Info("✓ Created documents", "documents", len(docs), "skipped_empty", skipped)
	return docs
}

// PrepareForRAG - Documents и разбиение на фрагменты
func (p *Processor) PrepareForRAG(messages []*Message) []chunker.Document {
	docs := p.Documents(messages)
	fragments := p.splitter.SplitDocuments(docs)
	log.Info("✓ Created chunks", "chunks", len(fragments))
	return fragments
}

func emailMetadata(m *Message, subject string) chunker.Metadata {
	sender := m.From
	if sender == "" {
		sender = "Unknown"
	}
	date := m.Date
	if date == "" {
		date = "Unknown"
	}
	messageID := m.MessageID
	if messageID == "" {
		messageID = m.ID
	}
	threadID := m.ThreadID
	if threadID == "" {
		threadID = m.ID
	}

	return chunker.Metadata{
		MetaEmailID:   m.ID,
		MetaMessageID: messageID,
		MetaThreadID:  threadID,
		MetaSubject:   subject,
		MetaSender:    sender,
		MetaDate:      date,
		MetaSource:    SourceGmail,
	}
}

// SourceKey - ключ источника фрагмента: письмо или его вложение
func SourceKey(d chunker.Document) string {
	key := cast.ToString(d.Metadata[MetaEmailID])
	if att := cast.ToString(d.Metadata[MetaAttachment]); att != "" {
		key += "/" + att
	}
	return key
}
