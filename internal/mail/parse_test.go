package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessage_PrefersPlainText(t *testing.T) {
	m := &gmail.Message{
		Id:       "m1",
		ThreadId: "t1",
		LabelIds: []string{"INBOX", "UNREAD"},
		Snippet:  "snippet",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Quarterly report"},
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "bob@example.com"},
				{Name: "Date", Value: "Mon, 2 Jan 2006 15:04:05 -0700"},
				{Name: "Message-Id", Value: "<abc@mail.example.com>"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html body</p>")}},
				{MimeType: "text/plain; charset=UTF-8", Body: &gmail.MessagePartBody{Data: b64("plain body")}},
				{
					MimeType: "application/pdf",
					Filename: "report.pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att1", Size: 1234},
				},
			},
		},
	}

	msg := ParseMessage(m)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "<abc@mail.example.com>", msg.MessageID)
	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "Alice <alice@example.com>", msg.From)
	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "Mon, 2 Jan 2006 15:04:05 -0700", msg.Date)
	assert.Equal(t, "plain body", msg.Body)
	assert.True(t, msg.HasLabel("UNREAD"))
	assert.False(t, msg.HasLabel("STARRED"))

	require.True(t, msg.HasAttachments)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "att1", msg.Attachments[0].ID)
	assert.True(t, msg.Attachments[0].IsPDF())
}

func TestParseMessage_FallsBackToHTML(t *testing.T) {
	m := &gmail.Message{
		Id: "m2",
		Payload: &gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: b64("<b>only html</b>")},
		},
	}

	msg := ParseMessage(m)
	assert.Equal(t, "<b>only html</b>", msg.Body)
	assert.Equal(t, "m2", msg.ThreadID)
	assert.Equal(t, "m2", msg.MessageID)
	assert.False(t, msg.HasAttachments)
}

func TestParseMessage_NoPayload(t *testing.T) {
	msg := ParseMessage(&gmail.Message{Id: "m3", ThreadId: "t3"})
	assert.Equal(t, "m3", msg.ID)
	assert.Empty(t, msg.Body)
}

func TestDecodeBase64(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("no padding?"))
	got, err := decodeBase64(raw)
	require.NoError(t, err)
	assert.Equal(t, "no padding?", string(got))

	_, err = decodeBase64("%%%")
	assert.Error(t, err)
}
