package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

const (
	uploadFallback = "Failed to upload file"
	queryFallback  = "Failed to process query"

	// DefaultExportFilename is used when the service suggests no filename.
	DefaultExportFilename = "data.csv"

	// locationPreview is how many location names the upload confirmation lists.
	locationPreview = 5
)

// ExportSink receives the CSV produced by an export request.
type ExportSink interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// Controller owns the state of one conversation and is the only thing that
// mutates it. At most one upload or query is in flight at a time; a second
// one started while busy is dropped. Export runs outside that exclusion and
// never touches the timeline.
type Controller struct {
	id        types.SessionID
	service   analytics.Service
	timeout   time.Duration
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time

	mu             sync.Mutex
	datasetLoaded  bool
	knownLocations []string
	busy           bool
	pendingInput   string
	timeline       []Message
}

// Option configures a Controller.
type Option func(*Controller)

// WithID sets the session ID. A random one is generated otherwise.
func WithID(id types.SessionID) Option {
	return func(c *Controller) { c.id = id }
}

// WithTimeout bounds every remote call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithObserver registers fn to be called after every state change.
func WithObserver(fn Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller with an empty timeline and no dataset loaded.
func New(service analytics.Service, opts ...Option) *Controller {
	c := &Controller{
		service:        service,
		now:            time.Now,
		knownLocations: []string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = types.NewSessionID()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("session_id", string(c.id))
	return c
}

// ID returns the session ID.
func (c *Controller) ID() types.SessionID {
	return c.id
}

// Ingest uploads file to the analytics service. On success the dataset is
// marked loaded and the known locations are replaced; on failure the
// previous dataset state is kept. Reports false when the call was dropped
// because another operation was in flight.
func (c *Controller) Ingest(ctx context.Context, file analytics.File) (Message, bool) {
	run, ok := c.StartIngest(ctx, file)
	if !ok {
		return nil, false
	}
	return run(), true
}

// StartIngest marks the session busy and returns the remote half of the
// upload without running it. run must be called exactly once; until it
// returns the session stays busy. Reports false, with a nil run, when the
// upload was dropped.
func (c *Controller) StartIngest(ctx context.Context, file analytics.File) (run func() Message, ok bool) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.logger.Debug("upload dropped while busy", "file", file.Name)
		return nil, false
	}
	c.busy = true
	c.mu.Unlock()
	c.notify(Event{Type: EventBusy, Busy: true})

	return func() Message { return c.finishIngest(ctx, file) }, true
}

func (c *Controller) finishIngest(ctx context.Context, file analytics.File) Message {
	opCtx, cancel := c.operationContext(ctx)
	res, err := c.service.Ingest(opCtx, file)
	cancel()

	var msg Message
	c.mu.Lock()
	if err != nil {
		msg = ErrorMessage{Envelope: c.envelope(), Text: errorText(err, uploadFallback)}
	} else {
		locations := make([]string, len(res.Locations))
		copy(locations, res.Locations)
		c.datasetLoaded = true
		c.knownLocations = locations
		msg = SystemMessage{Envelope: c.envelope(), Text: ingestText(res)}
	}
	c.timeline = append(c.timeline, msg)
	c.busy = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("upload failed", "file", file.Name, "error", err)
	} else {
		c.logger.Info("dataset loaded", "file", file.Name, "locations", len(res.Locations))
	}
	c.notify(Event{Type: EventAppended, Message: msg})
	c.notify(Event{Type: EventBusy, Busy: false})
	return msg
}

// SetInput replaces the pending query text. It is allowed while busy.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.pendingInput = text
	c.mu.Unlock()
	c.notify(Event{Type: EventInput})
}

// Submit sends the pending input as a query. Nothing happens, and false is
// reported, when the input is blank, no dataset is loaded, or another
// operation is in flight. Otherwise the UserMessage is appended and the
// input cleared before the service is called, and the returned message is
// the BotMessage or ErrorMessage appended on resolution.
func (c *Controller) Submit(ctx context.Context) (Message, bool) {
	run, ok := c.StartSubmit(ctx)
	if !ok {
		return nil, false
	}
	return run(), true
}

// Ask sets the pending input to text and submits it in one step, so no
// concurrent SetInput can slip in between.
func (c *Controller) Ask(ctx context.Context, text string) (Message, bool) {
	run, ok := c.StartAsk(ctx, text)
	if !ok {
		return nil, false
	}
	return run(), true
}

// StartSubmit is Submit split in two: the UserMessage is appended and the
// session marked busy before it returns, and run performs the query. run
// must be called exactly once.
func (c *Controller) StartSubmit(ctx context.Context) (run func() Message, ok bool) {
	return c.startQuery(ctx, nil)
}

// StartAsk is the split form of Ask; see StartSubmit.
func (c *Controller) StartAsk(ctx context.Context, text string) (run func() Message, ok bool) {
	return c.startQuery(ctx, &text)
}

func (c *Controller) startQuery(ctx context.Context, text *string) (func() Message, bool) {
	c.mu.Lock()
	if text != nil {
		c.pendingInput = *text
	}
	query := c.pendingInput
	if strings.TrimSpace(query) == "" || !c.datasetLoaded || c.busy {
		c.mu.Unlock()
		return nil, false
	}
	user := UserMessage{Envelope: c.envelope(), Text: query}
	c.timeline = append(c.timeline, user)
	c.busy = true
	c.pendingInput = ""
	c.mu.Unlock()

	c.notify(Event{Type: EventAppended, Message: user})
	c.notify(Event{Type: EventBusy, Busy: true})

	return func() Message { return c.finishQuery(ctx, query) }, true
}

func (c *Controller) finishQuery(ctx context.Context, query string) Message {
	opCtx, cancel := c.operationContext(ctx)
	res, err := c.service.Analyze(opCtx, query)
	cancel()

	var msg Message
	c.mu.Lock()
	if err != nil {
		msg = ErrorMessage{Envelope: c.envelope(), Text: errorText(err, queryFallback)}
	} else {
		msg = BotMessage{
			Envelope:           c.envelope(),
			Summary:            res.Summary,
			ChartSeries:        res.ChartData,
			TableFull:          res.TableData,
			TablePreview:       Preview(res.TableData),
			LocationsForExport: res.Locations,
		}
	}
	c.timeline = append(c.timeline, msg)
	c.busy = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("query failed", "query", query, "error", err)
	} else {
		c.logger.Info("query answered", "query", query, "rows", len(res.TableData), "chart_points", len(res.ChartData))
	}
	c.notify(Event{Type: EventAppended, Message: msg})
	c.notify(Event{Type: EventBusy, Busy: false})
	return msg
}

// Export requests the CSV for locations and hands it to sink. It does not
// take part in the busy exclusion and never appends to the timeline; a
// failure is logged and returned for the caller's transport only.
func (c *Controller) Export(ctx context.Context, locations []string, sink ExportSink) error {
	opCtx, cancel := c.operationContext(ctx)
	defer cancel()

	res, err := c.service.Export(opCtx, locations)
	if err != nil {
		c.logger.Error("export failed", "locations", locations, "error", err)
		return fmt.Errorf("export: %w", err)
	}

	name := strings.TrimSpace(res.Filename)
	if name == "" {
		name = DefaultExportFilename
	}
	if err := sink.Save(opCtx, name, []byte(res.CSVData)); err != nil {
		c.logger.Error("export save failed", "filename", name, "error", err)
		return fmt.Errorf("save export: %w", err)
	}

	c.logger.Info("export saved", "filename", name, "bytes", len(res.CSVData))
	return nil
}

// ExportMessage exports with the location filter of the bot message id.
func (c *Controller) ExportMessage(ctx context.Context, id types.MessageID, sink ExportSink) error {
	bot, ok := c.Snapshot().Bot(id)
	if !ok {
		return fmt.Errorf("no bot message %s", id)
	}
	return c.Export(ctx, bot.LocationsForExport, sink)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	timeline := make([]Message, len(c.timeline))
	copy(timeline, c.timeline)
	locations := make([]string, len(c.knownLocations))
	copy(locations, c.knownLocations)

	return Snapshot{
		SessionID:      c.id,
		DatasetLoaded:  c.datasetLoaded,
		KnownLocations: locations,
		Busy:           c.busy,
		PendingInput:   c.pendingInput,
		Timeline:       timeline,
	}
}

// envelope stamps a new message. Caller must hold c.mu.
func (c *Controller) envelope() Envelope {
	return Envelope{ID: types.NewMessageID(), At: c.now()}
}

func (c *Controller) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) notify(e Event) {
	e.SessionID = c.id
	for _, fn := range c.observers {
		fn(e)
	}
}

func ingestText(res *analytics.IngestResult) string {
	preview := res.Locations
	if len(preview) > locationPreview {
		preview = preview[:locationPreview]
	}
	return fmt.Sprintf("%s. Available locations: %s...", res.Message, strings.Join(preview, ", "))
}

func errorText(err error, fallback string) string {
	return "Error: " + analytics.Describe(err, fallback)
}
