package martinrun

import (
	"github.com/raykavin/martinrun/pkg/core"
	"github.com/raykavin/martinrun/pkg/notification"
)

// notifiers fans a message out to every registered notifier
type notifiers struct {
	list []core.Notifier
}

func (n *notifiers) Add(notifier core.Notifier) {
	if notifier != nil {
		n.list = append(n.list, notifier)
	}
}

func (n *notifiers) Len() int { return len(n.list) }

func (n *notifiers) Notify(text string) {
	for _, notifier := range n.list {
		notifier.Notify(text)
	}
}

// initializeNotifications sets up the notifiers enabled in the config
func initializeNotifications(bt *Backtester) error {
	if settings := bt.config.Telegram; settings.Enabled {
		telegram, err := notification.NewTelegram(notification.TelegramParams{
			Token: settings.Token,
			Users: settings.Users,
		}, bt.log)
		if err != nil {
			return err
		}
		bt.notifier.Add(telegram)
	}

	if settings := bt.config.Mail; settings.Enabled {
		bt.notifier.Add(notification.NewMail(notification.MailParams{
			SMTPServerPort:    settings.Port,
			SMTPServerAddress: settings.Server,
			To:                settings.To,
			From:              settings.From,
			Password:          settings.Password,
			Subject:           settings.Subject,
		}, bt.log))
	}

	return nil
}
