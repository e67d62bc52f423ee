package session

import (
	"encoding/json"
	"time"

	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

// Snapshot is a point-in-time copy of a session's state. Messages are
// shared with the controller, which never mutates them.
type Snapshot struct {
	SessionID      types.SessionID
	DatasetLoaded  bool
	KnownLocations []string
	Busy           bool
	PendingInput   string
	Timeline       []Message
}

// Bot returns the bot message with the given ID.
func (s Snapshot) Bot(id types.MessageID) (BotMessage, bool) {
	for _, m := range s.Timeline {
		if bot, ok := m.(BotMessage); ok && bot.ID == id {
			return bot, true
		}
	}
	return BotMessage{}, false
}

// LatestBot returns the most recent bot message.
func (s Snapshot) LatestBot() (BotMessage, bool) {
	for i := len(s.Timeline) - 1; i >= 0; i-- {
		if bot, ok := s.Timeline[i].(BotMessage); ok {
			return bot, true
		}
	}
	return BotMessage{}, false
}

// snapshotJSON is the wire form of a Snapshot.
type snapshotJSON struct {
	SessionID      types.SessionID `json:"session_id"`
	DatasetLoaded  bool            `json:"dataset_loaded"`
	KnownLocations []string        `json:"known_locations"`
	Busy           bool            `json:"busy"`
	PendingInput   string          `json:"pending_input"`
	Timeline       []messageJSON   `json:"timeline"`
}

// messageJSON flattens every Message variant into one tagged object. The
// full table is not sent; table_total carries its length.
type messageJSON struct {
	Kind               Kind               `json:"kind"`
	ID                 types.MessageID    `json:"id"`
	At                 time.Time          `json:"at"`
	Text               string             `json:"text,omitempty"`
	Summary            string             `json:"summary,omitempty"`
	ChartSeries        []analytics.Record `json:"chart_series,omitempty"`
	TablePreview       []analytics.Record `json:"table_preview,omitempty"`
	TableTotal         int                `json:"table_total,omitempty"`
	LocationsForExport []string           `json:"locations_for_export,omitempty"`
}

func encodeMessage(m Message) messageJSON {
	out := messageJSON{Kind: m.Kind(), ID: m.MessageID(), At: m.Timestamp()}
	switch v := m.(type) {
	case UserMessage:
		out.Text = v.Text
	case SystemMessage:
		out.Text = v.Text
	case ErrorMessage:
		out.Text = v.Text
	case BotMessage:
		out.Summary = v.Summary
		out.ChartSeries = v.ChartSeries
		out.TablePreview = v.TablePreview
		out.TableTotal = len(v.TableFull)
		out.LocationsForExport = v.LocationsForExport
	}
	return out
}

// MarshalJSON encodes the snapshot with a "kind" tag on every message.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	timeline := make([]messageJSON, len(s.Timeline))
	for i, m := range s.Timeline {
		timeline[i] = encodeMessage(m)
	}
	locations := s.KnownLocations
	if locations == nil {
		locations = []string{}
	}
	return json.Marshal(snapshotJSON{
		SessionID:      s.SessionID,
		DatasetLoaded:  s.DatasetLoaded,
		KnownLocations: locations,
		Busy:           s.Busy,
		PendingInput:   s.PendingInput,
		Timeline:       timeline,
	})
}
