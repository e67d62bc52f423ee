package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/estatebot/internal/gateway"
	"github.com/user/estatebot/internal/render/terminal"
	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/internal/view"
	"github.com/user/estatebot/pkg/analytics"
)

const (
	maxTelegramMessage = 4096
	renderWidth        = 60

	// SessionPrefix is the session key prefix of every Telegram chat.
	SessionPrefix = "telegram:"
)

var acceptedExt = []string{".xlsx", ".xls"}

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Adapter bridges Telegram to the gateway. Uploaded documents become
// ingests, text becomes queries, and session output is pushed back through
// Deliver.
type Adapter struct {
	bot      botAPI
	gateway  *gateway.Gateway
	render   *terminal.Renderer
	download *http.Client

	// ExportFormat is "csv" (default) or "xlsx".
	ExportFormat string

	wg sync.WaitGroup
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return newAdapter(bot, gw), nil
}

func newAdapter(bot botAPI, gw *gateway.Gateway) *Adapter {
	return &Adapter{
		bot:      bot,
		gateway:  gw,
		render:   &terminal.Renderer{Width: renderWidth},
		download: http.DefaultClient,
	}
}

// Start begins long-polling for Telegram updates. Each update is handled on
// its own goroutine so a long query does not stall the chat; the session
// drops anything that arrives while it is busy.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			if update.Message.Text == "" && update.Message.Document == nil {
				continue
			}
			a.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer a.wg.Done()
				a.handleMessage(ctx, msg)
			}(update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			a.wg.Wait()
			return
		}
	}
}

// Deliver sends a session message to the chat named by sessionKey. It is
// registered with the delivery registry for the "telegram:" prefix.
func (a *Adapter) Deliver(sessionKey types.SessionKey, msg session.Message) error {
	chatID, err := chatIDFromKey(sessionKey)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(a.render.Plain(0, msg))
	if bot, ok := msg.(session.BotMessage); ok && len(bot.TablePreview) > 0 {
		text += "\n\nSend /export to download the full table."
	}
	return a.sendResponse(chatID, text)
}

func (a *Adapter) controller(msg *tgbotapi.Message) *session.Controller {
	ctrl, _ := a.gateway.Sessions.ResolveOrCreate(buildSessionKey(msg.From.ID, msg.Chat.ID))
	return ctrl
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}
	if msg.Document != nil {
		a.handleDocument(ctx, msg)
		return
	}
	a.controller(msg).Ask(ctx, msg.Text)
}

func (a *Adapter) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	if !slices.Contains(acceptedExt, strings.ToLower(filepath.Ext(doc.FileName))) {
		a.sendResponse(chatID, "Please send an Excel file ("+view.AcceptedTypes+").")
		return
	}

	fileURL, err := a.bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		slog.Error("telegram file lookup failed", "file_id", doc.FileID, "error", err)
		a.sendResponse(chatID, "Could not fetch that file from Telegram.")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		slog.Error("telegram file request failed", "error", err)
		return
	}
	resp, err := a.download.Do(req)
	if err != nil {
		slog.Error("telegram file download failed", "file_id", doc.FileID, "error", err)
		a.sendResponse(chatID, "Could not fetch that file from Telegram.")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("telegram file download failed", "file_id", doc.FileID, "status", resp.StatusCode)
		a.sendResponse(chatID, "Could not fetch that file from Telegram.")
		return
	}

	a.controller(msg).Ingest(ctx, analytics.File{Name: doc.FileName, Content: resp.Body})
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I analyse real estate data. "+view.HintUpload+" ("+view.AcceptedTypes+"), then ask things like:\n"+strings.Join(view.Suggestions, "\n"))

	case "status":
		snap := a.controller(msg).Snapshot()
		status := "no dataset"
		if snap.DatasetLoaded {
			status = fmt.Sprintf("loaded, %d locations", len(snap.KnownLocations))
		}
		busy := "idle"
		if snap.Busy {
			busy = "working"
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nDataset: %s\nMessages: %d\nState: %s", snap.SessionID, status, len(snap.Timeline), busy))

	case "export":
		a.handleExport(msg)

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status, /export")
	}
}

func (a *Adapter) handleExport(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctrl := a.controller(msg)
	bot, ok := ctrl.Snapshot().LatestBot()
	if !ok {
		a.sendResponse(chatID, "Nothing to export yet. Ask a question first.")
		return
	}

	var sink session.ExportSink = &documentSink{bot: a.bot, chatID: chatID}
	if a.ExportFormat == "xlsx" {
		sink = xlsxSink(sink)
	}
	err := a.gateway.Exports.Export(ctrl, bot.LocationsForExport, sink, func(err error) {
		if err != nil {
			a.sendResponse(chatID, "Export failed. Please try again.")
		}
	})
	if err != nil {
		slog.Error("telegram export not started", "error", err)
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			slog.Error("telegram send failed", "chat_id", chatID, "error", err)
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// splitMessage cuts text into Telegram-sized parts on rune boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := min(maxTelegramMessage, len(text))
		for end < len(text) && end > 0 && !isRuneStart(text[end]) {
			end--
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

// chatIDFromKey returns the chat ID, the last segment of a Telegram key.
func chatIDFromKey(key types.SessionKey) (int64, error) {
	s := string(key)
	if !strings.HasPrefix(s, SessionPrefix) {
		return 0, fmt.Errorf("not a telegram session key: %s", key)
	}
	id, err := strconv.ParseInt(s[strings.LastIndex(s, ":")+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chat id from %s: %w", key, err)
	}
	return id, nil
}
