package session

import (
	"time"

	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

// Kind names a Message variant.
type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
	KindError  Kind = "error"
	KindBot    Kind = "bot"
)

// Message is one entry of the timeline. The set of implementations is
// closed: UserMessage, SystemMessage, ErrorMessage and BotMessage.
type Message interface {
	Kind() Kind
	MessageID() types.MessageID
	Timestamp() time.Time
	isMessage()
}

// Envelope carries the identity stamped on a message when it is appended.
type Envelope struct {
	ID types.MessageID `json:"id"`
	At time.Time       `json:"at"`
}

func (e Envelope) MessageID() types.MessageID { return e.ID }
func (e Envelope) Timestamp() time.Time       { return e.At }

// UserMessage echoes a submitted query.
type UserMessage struct {
	Envelope
	Text string
}

// SystemMessage confirms a successful upload.
type SystemMessage struct {
	Envelope
	Text string
}

// ErrorMessage reports a failed upload or query.
type ErrorMessage struct {
	Envelope
	Text string
}

// BotMessage is the shaped result of a successful query. TableFull is kept
// for export and counting only; presentations render TablePreview.
type BotMessage struct {
	Envelope
	Summary            string
	ChartSeries        []analytics.Record
	TablePreview       []analytics.Record
	TableFull          []analytics.Record
	LocationsForExport []string
}

func (UserMessage) Kind() Kind   { return KindUser }
func (SystemMessage) Kind() Kind { return KindSystem }
func (ErrorMessage) Kind() Kind  { return KindError }
func (BotMessage) Kind() Kind    { return KindBot }

func (UserMessage) isMessage()   {}
func (SystemMessage) isMessage() {}
func (ErrorMessage) isMessage()  {}
func (BotMessage) isMessage()    {}

// PreviewRows is the number of table rows shown on screen.
const PreviewRows = 10

// Preview returns the first PreviewRows rows. The result shares storage with
// rows but has its capacity clipped so appends never write through.
func Preview(rows []analytics.Record) []analytics.Record {
	n := min(len(rows), PreviewRows)
	return rows[:n:n]
}

// Text returns the human-readable text of m: the summary for a BotMessage,
// the plain text for every other kind.
func Text(m Message) string {
	switch v := m.(type) {
	case UserMessage:
		return v.Text
	case SystemMessage:
		return v.Text
	case ErrorMessage:
		return v.Text
	case BotMessage:
		return v.Summary
	}
	return ""
}
