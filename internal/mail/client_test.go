package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const messagesPath = "/gmail/v1/users/me/messages"

// fakeGmail отдаёт две страницы списка и письма m1..m3; m2 возвращает 404
func fakeGmail(t *testing.T, listCalls *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == messagesPath:
			atomic.AddInt32(listCalls, 1)
			if r.URL.Query().Get("pageToken") == "" {
				assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
				writeJSON(t, w, map[string]any{
					"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
					"nextPageToken": "page2",
				})
				return
			}
			writeJSON(t, w, map[string]any{
				"messages": []map[string]string{{"id": "m3"}},
			})

		case strings.HasSuffix(r.URL.Path, "/attachments/att1"):
			writeJSON(t, w, map[string]any{"size": 3, "data": b64("pdf")})

		case strings.HasPrefix(r.URL.Path, messagesPath+"/"):
			id := strings.TrimPrefix(r.URL.Path, messagesPath+"/")
			if id == "m2" {
				http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
				return
			}
			msg := map[string]any{
				"id":       id,
				"threadId": "t-" + id,
				"labelIds": []string{"INBOX"},
				"payload": map[string]any{
					"mimeType": "multipart/mixed",
					"headers":  []map[string]string{{"name": "Subject", "value": "subject " + id}},
					"parts": []map[string]any{
						{"mimeType": "text/plain", "body": map[string]any{"data": b64("body " + id)}},
					},
				},
			}
			if id == "m3" {
				parts := msg["payload"].(map[string]any)["parts"].([]map[string]any)
				parts = append(parts, map[string]any{
					"mimeType": "application/pdf",
					"filename": "doc.pdf",
					"body":     map[string]any{"attachmentId": "att1", "size": 3},
				})
				msg["payload"].(map[string]any)["parts"] = parts
			}
			writeJSON(t, w, msg)

		default:
			http.NotFound(w, r)
		}
	}))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClientWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return c
}

func TestClient_FetchMessages(t *testing.T) {
	var listCalls int32
	srv := fakeGmail(t, &listCalls)
	defer srv.Close()

	c := newTestClient(t, srv)
	msgs, err := c.FetchMessages(context.Background(), FetchOptions{
		Query:          "is:unread",
		MaxResults:     10,
		PDFAttachments: true,
		Concurrency:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&listCalls))

	// m2 пропущено, порядок сохранён
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "body m1", msgs[0].Body)
	assert.Equal(t, "subject m1", msgs[0].Subject)
	assert.Equal(t, "t-m1", msgs[0].ThreadID)

	assert.Equal(t, "m3", msgs[1].ID)
	require.Len(t, msgs[1].Attachments, 1)
	assert.Equal(t, []byte("pdf"), msgs[1].Attachments[0].Data)
}

func TestClient_ListMessageIDs_RespectsMax(t *testing.T) {
	var listCalls int32
	srv := fakeGmail(t, &listCalls)
	defer srv.Close()

	c := newTestClient(t, srv)
	ids, err := c.ListMessageIDs(context.Background(), "is:unread", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
	assert.Equal(t, int32(1), atomic.LoadInt32(&listCalls))
}

func TestClient_AttachmentRequiresIDs(t *testing.T) {
	c := &Client{}
	_, err := c.Attachment(context.Background(), "", "a")
	assert.Error(t, err)
	_, err = c.Attachment(context.Background(), "m", "")
	assert.Error(t, err)
}
