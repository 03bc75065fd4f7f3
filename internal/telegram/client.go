package telegram

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MaxMediaGroupSize is the largest album the Bot API accepts.
const MaxMediaGroupSize = 10

// Member is the subset of a chat member record the membership check needs.
type Member struct {
	Status models.ChatMemberType
	// IsMember is only meaningful for restricted members.
	IsMember bool
}

// Upload is a single local file to send.
type Upload struct {
	Filename string
	Data     io.Reader
	Video    bool
	Caption  string
}

// Client is the slice of the Bot API the pipeline uses. Every error it
// returns is an *Error.
type Client interface {
	GetChatMember(ctx context.Context, chatID any, userID int64) (*Member, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SendPhoto(ctx context.Context, chatID int64, upload Upload) error
	SendVideo(ctx context.Context, chatID int64, upload Upload) error
	SendMediaGroup(ctx context.Context, chatID int64, uploads []Upload) error
}

// ChatRef converts a configured channel into the value GetChatMember takes:
// an int64 for numeric ids and the string itself for @usernames.
func ChatRef(channel string) (any, error) {
	if channel == "" {
		return nil, fmt.Errorf("empty channel")
	}
	if channel[0] == '@' {
		if len(channel) < 2 {
			return nil, fmt.Errorf("invalid channel username %q", channel)
		}
		return channel, nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid channel id %q: must be numeric or start with @", channel)
	}
	return id, nil
}

// botClient adapts *bot.Bot to Client.
type botClient struct {
	b *bot.Bot
}

// NewClient wraps a go-telegram bot.
//
//nolint:ireturn // callers depend on the interface
func NewClient(b *bot.Bot) Client {
	return &botClient{b: b}
}

func (c *botClient) GetChatMember(ctx context.Context, chatID any, userID int64) (*Member, error) {
	cm, err := c.b.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return nil, classify("getChatMember", err)
	}
	m := &Member{Status: cm.Type}
	if cm.Restricted != nil {
		m.IsMember = cm.Restricted.IsMember
	}
	return m, nil
}

func (c *botClient) SendMessage(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) (int, error) {
	msg, err := c.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	return msg.ID, nil
}

func (c *botClient) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	_, err := c.b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup,
	})
	return classify("editMessageText", err)
}

func (c *botClient) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	_, err := c.b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	return classify("answerCallbackQuery", err)
}

func (c *botClient) SendPhoto(ctx context.Context, chatID int64, upload Upload) error {
	_, err := c.b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: upload.Filename, Data: upload.Data},
		Caption: upload.Caption,
	})
	return classify("sendPhoto", err)
}

func (c *botClient) SendVideo(ctx context.Context, chatID int64, upload Upload) error {
	_, err := c.b.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:            chatID,
		Video:             &models.InputFileUpload{Filename: upload.Filename, Data: upload.Data},
		Caption:           upload.Caption,
		SupportsStreaming: true,
	})
	return classify("sendVideo", err)
}

func (c *botClient) SendMediaGroup(ctx context.Context, chatID int64, uploads []Upload) error {
	if len(uploads) < 2 || len(uploads) > MaxMediaGroupSize {
		return &Error{Op: "sendMediaGroup", Kind: KindGeneric,
			Err: fmt.Errorf("media group needs 2..%d items, got %d", MaxMediaGroupSize, len(uploads))}
	}

	media := make([]models.InputMedia, 0, len(uploads))
	for i, u := range uploads {
		attach := fmt.Sprintf("attach://file%d", i)
		if u.Video {
			media = append(media, &models.InputMediaVideo{
				Media:             attach,
				Caption:           u.Caption,
				MediaAttachment:   u.Data,
				SupportsStreaming: true,
			})
		} else {
			media = append(media, &models.InputMediaPhoto{
				Media:           attach,
				Caption:         u.Caption,
				MediaAttachment: u.Data,
			})
		}
	}

	_, err := c.b.SendMediaGroup(ctx, &bot.SendMediaGroupParams{ChatID: chatID, Media: media})
	return classify("sendMediaGroup", err)
}
