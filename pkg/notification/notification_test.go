package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMail_Notify(t *testing.T) {
	mail := NewMail(MailParams{
		SMTPServerAddress: "smtp.example.com",
		SMTPServerPort:    587,
		From:              "bot@example.com",
		To:                "me@example.com",
		Password:          "secret",
	}, nil)

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	mail.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	mail.Notify("line one\nline two")

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"me@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: martinrun batch report\r\n")
	assert.Contains(t, gotMsg, "To: <me@example.com>\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline one\r\nline two"))
}

func TestMail_NotifyFailureIsLogged(t *testing.T) {
	mail := NewMail(MailParams{SMTPServerAddress: "localhost", Subject: "custom"}, nil)
	calls := 0
	mail.send = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("connection refused")
	}

	assert.NotPanics(t, func() { mail.Notify("x") })
	assert.Equal(t, 1, calls)
	assert.Contains(t, string(mail.message("x")), "Subject: custom")
}

type fakeTelegram struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot","username":"bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		body, _ := io.ReadAll(r.Body)
		params := map[string]any{}
		_ = json.Unmarshal(body, &params)

		f.mu.Lock()
		f.sent = append(f.sent, params)
		f.mu.Unlock()

		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestTelegram_Notify(t *testing.T) {
	fake := &fakeTelegram{}
	server := httptest.NewServer(fake)
	defer server.Close()

	telegram, err := NewTelegram(TelegramParams{Token: "token", Users: []int{42, 43}, URL: server.URL}, nil)
	require.NoError(t, err)

	telegram.Notify("batch done")

	require.Len(t, fake.sent, 2)
	assert.Equal(t, "42", fmt.Sprint(fake.sent[0]["chat_id"]))
	assert.Equal(t, "43", fmt.Sprint(fake.sent[1]["chat_id"]))
	assert.Equal(t, "```\nbatch done\n```", fake.sent[0]["text"])
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, split("short", 10))
	assert.Equal(t, []string{"aaaa\n", "bbbb\n", "cc"}, split("aaaa\nbbbb\ncc", 6))
	assert.Equal(t, []string{"abcdef", "ghij"}, split("abcdefghij", 6))
}
