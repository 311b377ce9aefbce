package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smartdom/crm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *recordingBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt;", FormatMessage("a <b>", "", "/objects/1"))
	assert.Equal(t, "done", FormatMessage("done", "https://crm.example", ""))
	assert.Equal(t,
		"Stage advanced\n\n<a href=\"https://crm.example/objects/1\">Open</a>",
		FormatMessage("Stage advanced", "https://crm.example/", "/objects/1"),
	)
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &recordingBot{}
	sender := newTelegramSender(bot, "https://crm.example", zap.NewNop())

	require.NoError(t, sender.Send(context.Background(), "123456", "Task assigned", "/tasks/9"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(123456), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, bot.sent[0].ParseMode)
	assert.Contains(t, bot.sent[0].Text, "https://crm.example/tasks/9")

	t.Run("invalid chat id", func(t *testing.T) {
		err := sender.Send(context.Background(), "@someone", "x", "")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, sender.Send(ctx, "1", "x", ""), context.Canceled)
	})

	t.Run("api failure", func(t *testing.T) {
		failing := newTelegramSender(&recordingBot{err: errors.New("forbidden")}, "", zap.NewNop())
		assert.Error(t, failing.Send(context.Background(), "1", "x", ""))
	})
}

func TestNewTelegramSender_Disabled(t *testing.T) {
	_, err := NewTelegramSender(&config.Config{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}
