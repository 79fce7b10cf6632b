package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askbridge/internal/model"
)

const testToken = "123:abc"

type fakeBotAPI struct {
	mu        sync.Mutex
	messages  []map[string]string
	documents []string
	served    atomic.Bool
	update    string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	switch method {
	case "getMe":
		writeOK(w, `{"id":1,"is_bot":true,"first_name":"bridge","username":"bridge_bot"}`)
	case "getUpdates":
		if f.update != "" && f.served.CompareAndSwap(false, true) {
			writeOK(w, "["+f.update+"]")
			return
		}
		time.Sleep(20 * time.Millisecond)
		writeOK(w, `[]`)
	case "sendMessage":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.messages = append(f.messages, map[string]string{
			"chat_id":      r.PostForm.Get("chat_id"),
			"text":         r.PostForm.Get("text"),
			"reply_markup": r.PostForm.Get("reply_markup"),
		})
		f.mu.Unlock()
		writeOK(w, `{"message_id":10,"date":0,"chat":{"id":42,"type":"private"}}`)
	case "sendDocument":
		file, header, err := r.FormFile("document")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, file)
		f.mu.Lock()
		f.documents = append(f.documents, r.FormValue("chat_id")+":"+header.Filename)
		f.mu.Unlock()
		writeOK(w, `{"message_id":11,"date":0,"chat":{"id":42,"type":"private"}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func writeOK(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":` + result + `}`))
}

func newTestTransport(t *testing.T, api *fakeBotAPI) *Transport {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tr, err := New(Config{
		Token:       testToken,
		Endpoint:    srv.URL + "/bot%s/%s",
		PollTimeout: time.Second,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_RejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := New(Config{Token: testToken, Endpoint: srv.URL + "/bot%s/%s", HTTPClient: srv.Client()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to telegram")
}

func TestTransport_SendTextWithForceReply(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api)

	require.NoError(t, tr.SendText(context.Background(), "42", "#abc\nColor?", model.SendOptions{ForceReply: true}))
	require.NoError(t, tr.SendText(context.Background(), "42", "done", model.SendOptions{}))

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.messages, 2)
	assert.Equal(t, "42", api.messages[0]["chat_id"])
	assert.Equal(t, "#abc\nColor?", api.messages[0]["text"])

	var markup map[string]any
	require.NoError(t, json.Unmarshal([]byte(api.messages[0]["reply_markup"]), &markup))
	assert.Equal(t, true, markup["force_reply"])
	assert.Empty(t, api.messages[1]["reply_markup"])
}

func TestTransport_SendDocument(t *testing.T) {
	api := &fakeBotAPI{}
	tr := newTestTransport(t, api)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	require.NoError(t, tr.SendDocument(context.Background(), "42", path))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"42:notes.txt"}, api.documents)
}

func TestTransport_SendRejectsBadChannel(t *testing.T) {
	tr := newTestTransport(t, &fakeBotAPI{})
	err := tr.SendText(context.Background(), "not-a-chat", "hi", model.SendOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chat id")
}

func TestTransport_SendAfterClose(t *testing.T) {
	tr := newTestTransport(t, &fakeBotAPI{})
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.SendText(context.Background(), "42", "hi", model.SendOptions{}), ErrClosed)
}

func TestTransport_DeliversInboundReplies(t *testing.T) {
	api := &fakeBotAPI{update: `{"update_id":5,"message":{"message_id":2,"date":0,` +
		`"chat":{"id":42,"type":"private"},"text":"blue",` +
		`"reply_to_message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"#abc\nColor?"}}}`}
	tr := newTestTransport(t, api)

	select {
	case msg := <-tr.Inbound():
		assert.Equal(t, model.InboundMessage{
			Channel:    "42",
			Text:       "blue",
			QuotedText: "#abc\nColor?",
			HasQuote:   true,
		}, msg)
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound message")
	}
}

func TestToInbound(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   model.InboundMessage
		ok     bool
	}{
		{
			name:   "no message",
			update: tgbotapi.Update{UpdateID: 1},
		},
		{
			name:   "plain message",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}, Text: "yes"}},
			want:   model.InboundMessage{Channel: "-100", Text: "yes"},
			ok:     true,
		},
		{
			name: "reply to captioned document",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				Chat:           &tgbotapi.Chat{ID: 7},
				Text:           "ok",
				ReplyToMessage: &tgbotapi.Message{Caption: "#x1\nLook"},
			}},
			want: model.InboundMessage{Channel: "7", Text: "ok", QuotedText: "#x1\nLook", HasQuote: true},
			ok:   true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToInbound(tc.update)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseChatID(t *testing.T) {
	id, err := ParseChatID(" -1001234 ")
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234), id)

	_, err = ParseChatID("@channel")
	assert.Error(t, err)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, isConflict("Conflict: terminated by other getUpdates request"))
	assert.False(t, isConflict("Failed to get updates, retrying in 3 seconds..."))
}
