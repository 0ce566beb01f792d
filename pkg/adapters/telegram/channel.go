// Package telegram connects the bot to the Telegram Bot API: outbound replies,
// invoices, and a long-polling loop turning updates into domain events.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// ChannelName tags Telegram users in domain.UserRef.
const ChannelName = "telegram"

// Platform limits on what a user can send.
const (
	MaxTextLen      = 4096
	MaxCallbackData = 64
)

const (
	maxMessageLen = MaxTextLen
	maxCaptionLen = 1024
)

// API is the part of *tgbotapi.BotAPI the adapter needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Channel sends replies through the Bot API.
type Channel struct {
	api API
}

var _ ports.Channel = (*Channel)(nil)

// NewChannel wraps a Bot API client.
func NewChannel(api API) *Channel {
	return &Channel{api: api}
}

func (c *Channel) Name() string { return ChannelName }

func chatID(to domain.UserRef) (int64, error) {
	id, err := strconv.ParseInt(to.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: bad chat id %q: %w", to.ID, err)
	}
	return id, nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func keyboard(rows [][]domain.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Title, b.Payload))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}

func (c *Channel) send(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

// SendText sends a message with an inline keyboard.
func (c *Channel) SendText(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, truncate(reply.Text, maxMessageLen))
	if kb := keyboard(reply.Buttons); kb != nil {
		msg.ReplyMarkup = kb
	}
	return c.send(ctx, msg)
}

// SendCard sends a photo with caption when the reply has an image. Card lists
// become one keyboard row per card, leading to the card's first button.
func (c *Channel) SendCard(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}

	rows := make([][]domain.Button, 0, len(reply.Cards)+len(reply.Buttons))
	for _, card := range reply.Cards {
		if len(card.Buttons) == 0 {
			continue
		}
		title := card.Title
		if card.Subtitle != "" {
			title += " · " + card.Subtitle
		}
		rows = append(rows, []domain.Button{{Title: title, Payload: card.Buttons[0].Payload}})
	}
	rows = append(rows, reply.Buttons...)

	if reply.ImageURL == "" {
		msg := tgbotapi.NewMessage(id, truncate(reply.Text, maxMessageLen))
		if kb := keyboard(rows); kb != nil {
			msg.ReplyMarkup = kb
		}
		return c.send(ctx, msg)
	}

	photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(reply.ImageURL))
	photo.Caption = truncate(reply.Text, maxCaptionLen)
	if kb := keyboard(rows); kb != nil {
		photo.ReplyMarkup = kb
	}
	return c.send(ctx, photo)
}

// SendLocation sends a map pin.
func (c *Channel) SendLocation(ctx context.Context, to domain.UserRef, coords domain.Coordinates) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	return c.send(ctx, tgbotapi.NewLocation(id, coords.Latitude, coords.Longitude))
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	return u.UserName
}
