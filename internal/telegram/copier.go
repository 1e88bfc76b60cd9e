package telegram

import (
	"context"

	"github.com/PoluyanbIch/GoQuizBot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Copier delivers broadcast payloads with copyMessage, so text, photos and
// files all go out unchanged and without a "forwarded from" header.
type Copier struct {
	api API
}

func NewCopier(api API) *Copier {
	return &Copier{api: api}
}

func (c *Copier) Copy(ctx context.Context, recipient int64, payload service.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.api.Request(tgbotapi.NewCopyMessage(recipient, payload.FromChatID, payload.MessageID))
	return err
}
