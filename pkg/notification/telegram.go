// Package notification delivers batch reports to people
package notification

import (
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/martinrun/pkg/logger"
)

// telegramMaxMessage is the Bot API limit for a message text
const telegramMaxMessage = 4096

// Telegram sends notifications to a fixed list of Telegram users
type Telegram struct {
	client *tb.Bot
	users  []int
	log    logger.Logger
}

// TelegramParams configures the Telegram bot
type TelegramParams struct {
	Token string
	Users []int
	// URL overrides the Bot API endpoint
	URL string
}

// NewTelegram creates the bot client. It does not poll for updates.
func NewTelegram(params TelegramParams, log logger.Logger) (*Telegram, error) {
	if log == nil {
		log = logger.Nop()
	}

	client, err := tb.NewBot(tb.Settings{
		URL:       params.URL,
		ParseMode: tb.ModeMarkdown,
		Token:     params.Token,
		Poller:    &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{client: client, users: params.Users, log: log}, nil
}

// Notify sends text, as a preformatted block, to every user
func (t *Telegram) Notify(text string) {
	for _, chunk := range split(text, telegramMaxMessage-8) {
		message := fmt.Sprintf("```\n%s\n```", chunk)
		for _, user := range t.users {
			if _, err := t.client.Send(&tb.User{ID: int64(user)}, message); err != nil {
				t.log.WithError(err).WithField("user", user).Error("notification/telegram: failed to send message")
			}
		}
	}
}

// split cuts text into pieces of at most size bytes, preferring line breaks
func split(text string, size int) []string {
	chunks := make([]string, 0, 1)
	for len(text) > size {
		cut := size
		for i := size; i > 0; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}
