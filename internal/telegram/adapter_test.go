package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/estatebot/internal/delivery"
	"github.com/user/estatebot/internal/gateway"
	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

type fakeBot struct {
	mu      sync.Mutex
	texts   []string
	docs    []tgbotapi.FileBytes
	fileURL string
	updates chan tgbotapi.Update
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		b.texts = append(b.texts, v.Text)
	case tgbotapi.DocumentConfig:
		b.docs = append(b.docs, v.File.(tgbotapi.FileBytes))
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	return b.fileURL + "/" + fileID, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {}

func (b *fakeBot) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

type mockService struct {
	IngestFunc func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error)
	ExportFunc func(ctx context.Context, locations []string) (*analytics.ExportResult, error)
}

func (m *mockService) Ingest(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, file)
	}
	return &analytics.IngestResult{Message: "Data uploaded", Locations: []string{"Wakad"}}, nil
}

func (m *mockService) Analyze(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
	return &analytics.AnalyzeResult{
		Summary:   "Wakad grew steadily",
		TableData: []analytics.Record{analytics.NewRecord(analytics.KeyLocation, "Wakad", analytics.KeyYear, 2022.0)},
		Locations: []string{"Wakad"},
	}, nil
}

func (m *mockService) Export(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, locations)
	}
	return &analytics.ExportResult{CSVData: "final location\nWakad\n", Filename: "wakad.csv"}, nil
}

func setupAdapter(t *testing.T, svc analytics.Service) (*Adapter, *fakeBot) {
	t.Helper()
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	routes := delivery.NewRegistry()
	gw := gateway.New(func(key types.SessionKey, id types.SessionID) *session.Controller {
		return session.New(svc, session.WithID(id), session.WithObserver(routes.Observer(key)))
	}, gateway.Options{})
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)

	a := newAdapter(bot, gw)
	routes.Register(SessionPrefix, a.Deliver)
	return a, bot
}

func textMessage(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return msg
}

func documentMessage(name string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "file-1", FileName: name},
	}
}

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestSplitMessageKeepsRunes(t *testing.T) {
	long := strings.Repeat("₹", 2000)
	for i, part := range splitMessage(long) {
		if !utf8.ValidString(part) {
			t.Errorf("part %d is not valid UTF-8", i)
		}
	}
}

func TestBuildSessionKey(t *testing.T) {
	key := buildSessionKey(12345, 67890)
	if string(key) != "telegram:12345:67890" {
		t.Errorf("expected 'telegram:12345:67890', got %q", key)
	}
	id, err := chatIDFromKey(key)
	if err != nil || id != 67890 {
		t.Errorf("expected chat 67890, got %d (%v)", id, err)
	}
	if _, err := chatIDFromKey("web:abc"); err == nil {
		t.Error("expected error for non-telegram key")
	}
}

func TestDocumentThenQuery(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("workbook-bytes"))
	}))
	defer files.Close()

	var received string
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			data, _ := io.ReadAll(file.Content)
			received = file.Name + ":" + string(data)
			return &analytics.IngestResult{Message: "Data uploaded", Locations: []string{"Wakad", "Aundh"}}, nil
		},
	}
	a, bot := setupAdapter(t, svc)
	bot.fileURL = files.URL
	a.download = files.Client()

	a.handleMessage(context.Background(), documentMessage("pune.xlsx"))
	if received != "pune.xlsx:workbook-bytes" {
		t.Errorf("unexpected upload %q", received)
	}

	a.handleMessage(context.Background(), textMessage("Analyze Wakad"))

	sent := bot.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %d: %q", len(sent), sent)
	}
	if !strings.Contains(sent[0], "Data uploaded. Available locations: Wakad, Aundh...") {
		t.Errorf("unexpected upload reply %q", sent[0])
	}
	if strings.Contains(sent[0], "\x1b[") {
		t.Error("expected plain text without ANSI escapes")
	}
	for _, want := range []string{"Wakad grew steadily", "Data Table (1 records)", "/export"} {
		if !strings.Contains(sent[1], want) {
			t.Errorf("expected query reply to contain %q, got %q", want, sent[1])
		}
	}
}

func TestDocumentWrongExtension(t *testing.T) {
	called := false
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			called = true
			return &analytics.IngestResult{}, nil
		},
	}
	a, bot := setupAdapter(t, svc)

	a.handleMessage(context.Background(), documentMessage("notes.pdf"))
	if called {
		t.Error("expected no ingest for a non-Excel file")
	}
	if sent := bot.sent(); len(sent) != 1 || !strings.Contains(sent[0], ".xlsx,.xls") {
		t.Errorf("unexpected replies %q", sent)
	}
}

func TestQueryBeforeUploadIsIgnored(t *testing.T) {
	a, bot := setupAdapter(t, &mockService{})
	a.handleMessage(context.Background(), textMessage("Analyze Wakad"))
	if sent := bot.sent(); len(sent) != 0 {
		t.Errorf("expected no replies, got %q", sent)
	}
}

func TestExportCommand(t *testing.T) {
	a, bot := setupAdapter(t, &mockService{})
	ctrl, _ := a.gateway.Sessions.ResolveOrCreate(buildSessionKey(7, 42))
	ctrl.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})
	ctrl.Ask(context.Background(), "Analyze Wakad")

	a.handleMessage(context.Background(), textMessage("/export"))
	if !a.gateway.Exports.WaitIdle(time.Second) {
		t.Fatal("export did not finish")
	}

	bot.mu.Lock()
	defer bot.mu.Unlock()
	if len(bot.docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(bot.docs))
	}
	if bot.docs[0].Name != "wakad.csv" || string(bot.docs[0].Bytes) != "final location\nWakad\n" {
		t.Errorf("unexpected document %s %q", bot.docs[0].Name, bot.docs[0].Bytes)
	}
}

func TestExportCommandFailure(t *testing.T) {
	svc := &mockService{
		ExportFunc: func(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
			return nil, &analytics.ServiceError{Op: "download", Status: 500, Message: "boom"}
		},
	}
	a, bot := setupAdapter(t, svc)
	ctrl, _ := a.gateway.Sessions.ResolveOrCreate(buildSessionKey(7, 42))
	ctrl.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})
	ctrl.Ask(context.Background(), "Analyze Wakad")
	before := len(ctrl.Snapshot().Timeline)

	a.handleMessage(context.Background(), textMessage("/export"))
	if !a.gateway.Exports.WaitIdle(time.Second) {
		t.Fatal("export did not finish")
	}

	sent := bot.sent()
	if last := sent[len(sent)-1]; last != "Export failed. Please try again." {
		t.Errorf("unexpected last reply %q", last)
	}
	if after := len(ctrl.Snapshot().Timeline); after != before {
		t.Errorf("expected timeline unchanged, got %d (was %d)", after, before)
	}
}

func TestExportCommandWithoutResult(t *testing.T) {
	a, bot := setupAdapter(t, &mockService{})
	a.handleMessage(context.Background(), textMessage("/export"))
	if sent := bot.sent(); len(sent) != 1 || !strings.Contains(sent[0], "Nothing to export") {
		t.Errorf("unexpected replies %q", sent)
	}
}

func TestStatusCommand(t *testing.T) {
	a, bot := setupAdapter(t, &mockService{})
	a.handleMessage(context.Background(), textMessage("/status"))

	sent := bot.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	for _, want := range []string{"Dataset: no dataset", "Messages: 0", "State: idle"} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("expected %q in %q", want, sent[0])
		}
	}
}

func TestStartLoopStopsOnCancel(t *testing.T) {
	a, bot := setupAdapter(t, &mockService{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	bot.updates <- tgbotapi.Update{Message: textMessage("/start")}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if sent := bot.sent(); len(sent) != 1 || !strings.Contains(sent[0], "Upload your Excel file") {
		t.Errorf("unexpected replies %q", sent)
	}
}
