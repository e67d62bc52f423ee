package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/estatebot/pkg/analytics"
)

// mockService is a test double that satisfies analytics.Service.
type mockService struct {
	IngestFunc  func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error)
	AnalyzeFunc func(ctx context.Context, query string) (*analytics.AnalyzeResult, error)
	ExportFunc  func(ctx context.Context, locations []string) (*analytics.ExportResult, error)

	ingestCalls  atomic.Int32
	analyzeCalls atomic.Int32
	exportCalls  atomic.Int32
}

func (m *mockService) Ingest(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
	m.ingestCalls.Add(1)
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, file)
	}
	return &analytics.IngestResult{Message: "Loaded", Locations: []string{"Wakad"}}, nil
}

func (m *mockService) Analyze(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
	m.analyzeCalls.Add(1)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, query)
	}
	return &analytics.AnalyzeResult{Summary: "ok"}, nil
}

func (m *mockService) Export(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
	m.exportCalls.Add(1)
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, locations)
	}
	return &analytics.ExportResult{CSVData: "a,b\n", Filename: "out.csv"}, nil
}

// memorySink records saved exports.
type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memorySink) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[name] = data
	return nil
}

func rows(n int) []analytics.Record {
	out := make([]analytics.Record, n)
	for i := range out {
		out[i] = analytics.NewRecord(analytics.KeyLocation, "Wakad", analytics.KeyYear, float64(2000+i))
	}
	return out
}

func loaded(t *testing.T, svc *mockService, opts ...Option) *Controller {
	t.Helper()
	c := New(svc, opts...)
	if _, ok := c.Ingest(context.Background(), analytics.File{Name: "data.xlsx", Content: strings.NewReader("x")}); !ok {
		t.Fatal("expected ingest to run")
	}
	if !c.Snapshot().DatasetLoaded {
		t.Fatal("expected dataset to be loaded")
	}
	return c
}

func TestIngestSuccess(t *testing.T) {
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			return &analytics.IngestResult{
				Message:   "Loaded",
				Locations: []string{"Wakad", "Aundh", "Akurdi", "Baner", "Hinjewadi", "Kothrud"},
			}, nil
		},
	}
	c := New(svc)

	msg, ok := c.Ingest(context.Background(), analytics.File{Name: "pune.xlsx", Content: strings.NewReader("x")})
	if !ok {
		t.Fatal("expected ingest to run")
	}

	snap := c.Snapshot()
	if !snap.DatasetLoaded {
		t.Error("expected dataset loaded")
	}
	if snap.Busy {
		t.Error("expected busy to be cleared")
	}
	if len(snap.Timeline) != 1 {
		t.Fatalf("expected 1 message, got %d", len(snap.Timeline))
	}
	sys, ok := snap.Timeline[0].(SystemMessage)
	if !ok {
		t.Fatalf("expected SystemMessage, got %T", snap.Timeline[0])
	}
	want := "Loaded. Available locations: Wakad, Aundh, Akurdi, Baner, Hinjewadi..."
	if sys.Text != want {
		t.Errorf("expected %q, got %q", want, sys.Text)
	}
	if strings.Contains(sys.Text, "Kothrud") {
		t.Error("expected only the first 5 locations")
	}
	if msg.MessageID() != sys.ID {
		t.Error("expected returned message to be the appended one")
	}
	if len(snap.KnownLocations) != 6 {
		t.Errorf("expected 6 known locations, got %d", len(snap.KnownLocations))
	}
}

func TestIngestWithoutLocations(t *testing.T) {
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			return &analytics.IngestResult{Message: "Loaded"}, nil
		},
	}
	c := New(svc)
	c.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})

	snap := c.Snapshot()
	if snap.KnownLocations == nil || len(snap.KnownLocations) != 0 {
		t.Errorf("expected empty, non-nil locations, got %#v", snap.KnownLocations)
	}
	if got := Text(snap.Timeline[0]); got != "Loaded. Available locations: ..." {
		t.Errorf("unexpected text %q", got)
	}
}

func TestIngestFailureFallbackText(t *testing.T) {
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			return nil, &analytics.TransportError{Op: "upload", Err: errors.New("connection refused")}
		},
	}
	c := New(svc)
	c.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})

	snap := c.Snapshot()
	errMsg, ok := snap.Timeline[0].(ErrorMessage)
	if !ok {
		t.Fatalf("expected ErrorMessage, got %T", snap.Timeline[0])
	}
	if errMsg.Text != "Error: Failed to upload file" {
		t.Errorf("unexpected text %q", errMsg.Text)
	}
	if snap.DatasetLoaded {
		t.Error("expected dataset to stay unloaded")
	}
	if snap.Busy {
		t.Error("expected busy to be cleared")
	}
}

func TestFailedIngestKeepsPreviousDataset(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)
	before := c.Snapshot().KnownLocations

	svc.IngestFunc = func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
		return nil, &analytics.ServiceError{Op: "upload", Status: 400, Message: "Invalid file format"}
	}
	c.Ingest(context.Background(), analytics.File{Name: "bad.txt", Content: strings.NewReader("x")})

	snap := c.Snapshot()
	if !snap.DatasetLoaded {
		t.Fatal("expected dataset to remain loaded after failed ingest")
	}
	if fmt.Sprint(snap.KnownLocations) != fmt.Sprint(before) {
		t.Errorf("expected locations %v to be kept, got %v", before, snap.KnownLocations)
	}
	if got := Text(snap.Timeline[1]); got != "Error: Invalid file format" {
		t.Errorf("unexpected error text %q", got)
	}

	msg, ok := c.Ask(context.Background(), "Analyze Wakad")
	if !ok {
		t.Fatal("expected query to run after failed ingest")
	}
	if _, isBot := msg.(BotMessage); !isBot {
		t.Errorf("expected BotMessage, got %T", msg)
	}
}

func TestMutualExclusion(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &mockService{
		IngestFunc: func(ctx context.Context, file analytics.File) (*analytics.IngestResult, error) {
			close(started)
			<-release
			return &analytics.IngestResult{Message: "Loaded"}, nil
		},
	}
	c := New(svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})
	}()
	<-started

	if !c.Snapshot().Busy {
		t.Fatal("expected busy while ingest is in flight")
	}
	for i := 0; i < 5; i++ {
		if _, ok := c.Ingest(context.Background(), analytics.File{Name: "b.xlsx", Content: strings.NewReader("x")}); ok {
			t.Error("expected second ingest to be dropped")
		}
	}
	close(release)
	<-done

	if n := svc.ingestCalls.Load(); n != 1 {
		t.Errorf("expected 1 ingest call, got %d", n)
	}
	if n := len(c.Snapshot().Timeline); n != 1 {
		t.Errorf("expected 1 message, got %d", n)
	}

	// Once resolved, a new ingest goes through.
	if _, ok := c.Ingest(context.Background(), analytics.File{Name: "c.xlsx", Content: strings.NewReader("x")}); !ok {
		t.Error("expected ingest to run after busy cleared")
	}
}

func TestQueryDroppedWhileBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &mockService{}
	c := loaded(t, svc)
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		close(started)
		<-release
		return &analytics.AnalyzeResult{Summary: "done"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Ask(context.Background(), "first")
	}()
	<-started

	if _, ok := c.Ask(context.Background(), "second"); ok {
		t.Error("expected second query to be dropped")
	}
	if _, ok := c.Ingest(context.Background(), analytics.File{Name: "x.xlsx", Content: strings.NewReader("x")}); ok {
		t.Error("expected ingest to be dropped while query in flight")
	}
	close(release)
	<-done

	if n := svc.analyzeCalls.Load(); n != 1 {
		t.Errorf("expected 1 analyze call, got %d", n)
	}
	// system + user + bot; the dropped query left no UserMessage.
	if n := len(c.Snapshot().Timeline); n != 3 {
		t.Errorf("expected 3 messages, got %d", n)
	}
}

func TestSubmitOrdering(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)

	var during Snapshot
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		during = c.Snapshot()
		return &analytics.AnalyzeResult{Summary: "Wakad grew"}, nil
	}

	c.SetInput("Analyze Wakad")
	if _, ok := c.Submit(context.Background()); !ok {
		t.Fatal("expected submit to run")
	}

	last := during.Timeline[len(during.Timeline)-1]
	user, ok := last.(UserMessage)
	if !ok || user.Text != "Analyze Wakad" {
		t.Fatalf("expected UserMessage to be visible before resolution, got %#v", last)
	}
	if during.PendingInput != "" {
		t.Errorf("expected input cleared at submission, got %q", during.PendingInput)
	}
	if !during.Busy {
		t.Error("expected busy during the call")
	}

	snap := c.Snapshot()
	if len(snap.Timeline) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(snap.Timeline))
	}
	if snap.Timeline[1].Kind() != KindUser || snap.Timeline[2].Kind() != KindBot {
		t.Errorf("expected user then bot, got %s then %s", snap.Timeline[1].Kind(), snap.Timeline[2].Kind())
	}
	if snap.PendingInput != "" {
		t.Errorf("expected empty input after resolution, got %q", snap.PendingInput)
	}
}

func TestStartAskAppendsBeforeRun(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)

	run, ok := c.StartAsk(context.Background(), "Analyze Wakad")
	if !ok {
		t.Fatal("expected query to start")
	}
	if n := svc.analyzeCalls.Load(); n != 0 {
		t.Fatalf("expected no analyze call before run, got %d", n)
	}
	snap := c.Snapshot()
	if !snap.Busy {
		t.Error("expected busy once started")
	}
	if last := snap.Timeline[len(snap.Timeline)-1]; last.Kind() != KindUser {
		t.Errorf("expected UserMessage last, got %s", last.Kind())
	}
	if _, ok := c.StartAsk(context.Background(), "again"); ok {
		t.Error("expected second start to be dropped")
	}
	if _, ok := c.StartIngest(context.Background(), analytics.File{Name: "b.xlsx", Content: strings.NewReader("x")}); ok {
		t.Error("expected ingest start to be dropped")
	}

	msg := run()
	if msg.Kind() != KindBot {
		t.Errorf("expected bot message, got %s", msg.Kind())
	}
	if c.Snapshot().Busy {
		t.Error("expected busy cleared after run")
	}
}

func TestStartIngestDefersUpload(t *testing.T) {
	svc := &mockService{}
	c := New(svc)

	run, ok := c.StartIngest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})
	if !ok {
		t.Fatal("expected ingest to start")
	}
	if !c.Snapshot().Busy || svc.ingestCalls.Load() != 0 {
		t.Fatal("expected busy with no upload sent yet")
	}
	if msg := run(); msg.Kind() != KindSystem {
		t.Errorf("expected system message, got %s", msg.Kind())
	}
	if snap := c.Snapshot(); snap.Busy || !snap.DatasetLoaded {
		t.Errorf("expected loaded and idle, got %+v", snap)
	}
}

func TestSubmitClearsInputOnFailure(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		return nil, &analytics.ServiceError{Op: "analyze", Status: 400, Message: "no data"}
	}

	c.SetInput("Analyze Nowhere")
	c.Submit(context.Background())

	snap := c.Snapshot()
	if snap.PendingInput != "" {
		t.Errorf("expected empty input, got %q", snap.PendingInput)
	}
	if snap.Timeline[1].Kind() != KindUser || snap.Timeline[2].Kind() != KindError {
		t.Errorf("expected user then error, got %s then %s", snap.Timeline[1].Kind(), snap.Timeline[2].Kind())
	}
}

func TestSubmitGating(t *testing.T) {
	svc := &mockService{}
	c := New(svc)

	for _, q := range []string{"Analyze Wakad", "x", "Compare Aundh and Akurdi"} {
		c.SetInput(q)
		if _, ok := c.Submit(context.Background()); ok {
			t.Errorf("expected submit of %q to be dropped without a dataset", q)
		}
	}

	if n := svc.analyzeCalls.Load(); n != 0 {
		t.Errorf("expected no analyze calls, got %d", n)
	}
	snap := c.Snapshot()
	if len(snap.Timeline) != 0 {
		t.Errorf("expected empty timeline, got %d messages", len(snap.Timeline))
	}
	if snap.PendingInput != "Compare Aundh and Akurdi" {
		t.Errorf("expected dropped input to be kept, got %q", snap.PendingInput)
	}
}

func TestSubmitBlankInput(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, ok := c.Ask(context.Background(), q); ok {
			t.Errorf("expected blank input %q to be dropped", q)
		}
	}
	if n := svc.analyzeCalls.Load(); n != 0 {
		t.Errorf("expected no analyze calls, got %d", n)
	}
	if n := len(c.Snapshot().Timeline); n != 1 {
		t.Errorf("expected only the system message, got %d", n)
	}
}

func TestSubmitSendsUntrimmedText(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)
	var sent string
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		sent = query
		return &analytics.AnalyzeResult{}, nil
	}

	c.Ask(context.Background(), "  Analyze Baner ")
	if sent != "  Analyze Baner " {
		t.Errorf("expected query to be sent verbatim, got %q", sent)
	}
}

func TestPreviewTruncation(t *testing.T) {
	for n := 0; n <= 25; n++ {
		full := rows(n)
		preview := Preview(full)

		want := n
		if want > PreviewRows {
			want = PreviewRows
		}
		if len(preview) != want {
			t.Errorf("n=%d: expected %d preview rows, got %d", n, want, len(preview))
		}
		for i := range preview {
			if preview[i].Text(analytics.KeyYear) != full[i].Text(analytics.KeyYear) {
				t.Errorf("n=%d: preview row %d differs from full row", n, i)
			}
		}
	}
}

func TestPreviewAppendDoesNotClobberFull(t *testing.T) {
	full := rows(12)
	preview := Preview(full)
	_ = append(preview, analytics.NewRecord("year", 1.0))
	if full[10].Text(analytics.KeyYear) != "2010" {
		t.Error("expected full table to be untouched by append on preview")
	}
}

func TestQueryWithLargeTableAndNoChart(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		return &analytics.AnalyzeResult{
			Summary:   "Wakad overview",
			ChartData: []analytics.Record{},
			TableData: rows(25),
			Locations: []string{"Wakad"},
		}, nil
	}

	msg, ok := c.Ask(context.Background(), "Analyze Wakad")
	if !ok {
		t.Fatal("expected query to run")
	}
	bot, isBot := msg.(BotMessage)
	if !isBot {
		t.Fatalf("expected BotMessage, got %T", msg)
	}
	if len(bot.TablePreview) != 10 {
		t.Errorf("expected 10 preview rows, got %d", len(bot.TablePreview))
	}
	if len(bot.TableFull) != 25 {
		t.Errorf("expected 25 full rows, got %d", len(bot.TableFull))
	}
	if bot.ChartSeries == nil || len(bot.ChartSeries) != 0 {
		t.Errorf("expected empty chart series to pass through, got %#v", bot.ChartSeries)
	}
	if fmt.Sprint(bot.LocationsForExport) != "[Wakad]" {
		t.Errorf("unexpected export locations %v", bot.LocationsForExport)
	}
}

func TestQueryServiceError(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc)
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		return nil, &analytics.ServiceError{Op: "analyze", Status: 404, Message: "no data"}
	}

	msg, _ := c.Ask(context.Background(), "Analyze Nowhere")
	errMsg, ok := msg.(ErrorMessage)
	if !ok {
		t.Fatalf("expected ErrorMessage, got %T", msg)
	}
	if !strings.Contains(errMsg.Text, "no data") {
		t.Errorf("expected text to contain 'no data', got %q", errMsg.Text)
	}

	snap := c.Snapshot()
	if !snap.DatasetLoaded {
		t.Error("expected dataset to remain loaded")
	}
	if snap.Busy {
		t.Error("expected busy to be cleared")
	}
}

func TestTimeoutReleasesBusy(t *testing.T) {
	svc := &mockService{}
	c := loaded(t, svc, WithTimeout(20*time.Millisecond))
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		<-ctx.Done()
		return nil, &analytics.TransportError{Op: "analyze", Err: ctx.Err()}
	}

	msg, ok := c.Ask(context.Background(), "Analyze Wakad")
	if !ok {
		t.Fatal("expected query to run")
	}
	if Text(msg) != "Error: Failed to process query" {
		t.Errorf("unexpected text %q", Text(msg))
	}
	if c.Snapshot().Busy {
		t.Error("expected busy to be cleared after timeout")
	}
}

func TestExportLeavesSessionUntouched(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := &mockService{}
	c := loaded(t, svc)
	svc.AnalyzeFunc = func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
		close(started)
		<-release
		return &analytics.AnalyzeResult{Summary: "ok"}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Ask(context.Background(), "Analyze Wakad")
	}()
	<-started

	before := c.Snapshot()
	sink := &memorySink{}
	if err := c.Export(context.Background(), []string{"Wakad"}, sink); err != nil {
		t.Fatalf("expected export to run while busy, got %v", err)
	}
	after := c.Snapshot()
	if len(after.Timeline) != len(before.Timeline) || !after.Busy {
		t.Error("expected export to leave timeline and busy untouched")
	}
	if string(sink.files["out.csv"]) != "a,b\n" {
		t.Errorf("unexpected saved files %v", sink.files)
	}

	close(release)
	<-done
}

func TestExportFailureIsSilent(t *testing.T) {
	svc := &mockService{
		ExportFunc: func(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
			return nil, &analytics.TransportError{Op: "download", Err: errors.New("connection reset")}
		},
	}
	c := loaded(t, svc)
	before := len(c.Snapshot().Timeline)

	sink := &memorySink{}
	err := c.Export(context.Background(), nil, sink)
	if err == nil {
		t.Fatal("expected export error to be returned")
	}
	var tErr *analytics.TransportError
	if !errors.As(err, &tErr) {
		t.Errorf("expected wrapped TransportError, got %v", err)
	}
	if n := len(c.Snapshot().Timeline); n != before {
		t.Errorf("expected no timeline change, got %d messages (was %d)", n, before)
	}
	if len(sink.files) != 0 {
		t.Error("expected nothing saved")
	}
}

func TestExportDefaultFilename(t *testing.T) {
	svc := &mockService{
		ExportFunc: func(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
			return &analytics.ExportResult{CSVData: "x\n"}, nil
		},
	}
	c := New(svc)
	sink := &memorySink{}
	if err := c.Export(context.Background(), []string{}, sink); err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.files[DefaultExportFilename]; !ok {
		t.Errorf("expected %s, got %v", DefaultExportFilename, sink.files)
	}
}

func TestExportMessage(t *testing.T) {
	var got []string
	svc := &mockService{
		AnalyzeFunc: func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
			return &analytics.AnalyzeResult{Summary: "ok", Locations: []string{"Aundh", "Akurdi"}}, nil
		},
		ExportFunc: func(ctx context.Context, locations []string) (*analytics.ExportResult, error) {
			got = locations
			return &analytics.ExportResult{CSVData: "x\n"}, nil
		},
	}
	c := loaded(t, svc)
	msg, _ := c.Ask(context.Background(), "Compare Aundh and Akurdi")

	if err := c.ExportMessage(context.Background(), msg.MessageID(), &memorySink{}); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[Aundh Akurdi]" {
		t.Errorf("expected bot locations to pass through, got %v", got)
	}

	if err := c.ExportMessage(context.Background(), "missing", &memorySink{}); err == nil {
		t.Error("expected error for unknown message")
	}
}

func TestObserverEvents(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	svc := &mockService{}
	c := New(svc, WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case EventAppended:
			seen = append(seen, "append:"+string(e.Message.Kind()))
		case EventBusy:
			seen = append(seen, fmt.Sprintf("busy:%v", e.Busy))
		}
	}))

	c.Ingest(context.Background(), analytics.File{Name: "a.xlsx", Content: strings.NewReader("x")})
	c.Ask(context.Background(), "Analyze Wakad")

	want := "busy:true append:system busy:false append:user busy:true append:bot busy:false"
	if got := strings.Join(seen, " "); got != want {
		t.Errorf("expected events %q, got %q", want, got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := loaded(t, &mockService{})
	snap := c.Snapshot()
	snap.KnownLocations[0] = "Mutated"
	snap.Timeline[0] = UserMessage{Text: "fake"}

	fresh := c.Snapshot()
	if fresh.KnownLocations[0] != "Wakad" {
		t.Error("expected controller locations to be unaffected")
	}
	if fresh.Timeline[0].Kind() != KindSystem {
		t.Error("expected controller timeline to be unaffected")
	}
}

func TestSnapshotJSON(t *testing.T) {
	svc := &mockService{
		AnalyzeFunc: func(ctx context.Context, query string) (*analytics.AnalyzeResult, error) {
			return &analytics.AnalyzeResult{Summary: "ok", TableData: rows(12)}, nil
		},
	}
	c := loaded(t, svc)
	c.Ask(context.Background(), "Analyze Wakad")

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		DatasetLoaded bool `json:"dataset_loaded"`
		Timeline      []struct {
			Kind         string            `json:"kind"`
			Text         string            `json:"text"`
			TablePreview []json.RawMessage `json:"table_preview"`
			TableTotal   int               `json:"table_total"`
		} `json:"timeline"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.DatasetLoaded {
		t.Error("expected dataset_loaded")
	}
	kinds := make([]string, len(decoded.Timeline))
	for i, m := range decoded.Timeline {
		kinds[i] = m.Kind
	}
	if strings.Join(kinds, ",") != "system,user,bot" {
		t.Errorf("unexpected kinds %v", kinds)
	}
	bot := decoded.Timeline[2]
	if len(bot.TablePreview) != 10 || bot.TableTotal != 12 {
		t.Errorf("expected 10 preview rows of 12, got %d of %d", len(bot.TablePreview), bot.TableTotal)
	}
}
