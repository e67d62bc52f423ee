package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/estatebot/internal/export"
	"github.com/user/estatebot/internal/session"
)

// documentSink sends an export to a chat as a file attachment.
type documentSink struct {
	bot    botAPI
	chatID int64
}

func (s *documentSink) Save(_ context.Context, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := s.bot.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func xlsxSink(next session.ExportSink) session.ExportSink {
	return &export.XLSXSink{Next: next}
}
