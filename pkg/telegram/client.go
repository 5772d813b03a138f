// Package telegram implements the notification and report delivery
// collaborators over the Telegram Bot API.
package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"shift-tracker-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	Bot *tgbotapi.BotAPI
}

func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Client{Bot: bot}, nil
}

// Notify sends a direct message to the member. userID must be a chat id.
func (c *Client) Notify(userID, message string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q is not a chat id: %w", userID, err)
	}
	_, err = c.Bot.Send(tgbotapi.NewMessage(chatID, message))
	return err
}

// Deliver posts one report section to the tenant's report channel.
func (c *Client) Deliver(_ string, channelRef string, section service.Section) error {
	chatID, err := strconv.ParseInt(channelRef, 10, 64)
	if err != nil {
		return fmt.Errorf("channel ref %q is not a chat id: %w", channelRef, err)
	}

	var b strings.Builder
	if section.Title != "" {
		fmt.Fprintf(&b, "*%s*\n", section.Title)
	}
	for _, line := range section.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = c.Bot.Send(msg)
	return err
}
