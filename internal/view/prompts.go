package view

import (
	"strings"

	"github.com/user/estatebot/internal/session"
)

const (
	HintUpload    = "Upload your Excel file to get started"
	HintAsk       = "Data loaded! Ask a question below."
	HintBusy      = "Analyzing..."
	AcceptedTypes = ".xlsx,.xls"

	defaultPlaceholder = "Ask about Wakad, Aundh, Ambegaon, etc..."
	placeholderNames   = 3
)

// Suggestions are example queries offered once a dataset is loaded.
var Suggestions = []string{
	"Analyze Wakad",
	"Compare Aundh and Akurdi",
	"Show price growth for Ambegaon",
}

// EmptyHint returns the hint shown in place of an empty timeline, or "" when
// the timeline has messages.
func EmptyHint(snap session.Snapshot) string {
	switch {
	case len(snap.Timeline) > 0:
		return ""
	case !snap.DatasetLoaded:
		return HintUpload
	default:
		return HintAsk
	}
}

// Placeholder returns the query input placeholder, naming a few of the
// dataset's locations when any are known.
func Placeholder(locations []string) string {
	if len(locations) == 0 {
		return defaultPlaceholder
	}
	names := locations[:min(len(locations), placeholderNames)]
	return "Ask about " + strings.Join(names, ", ") + ", etc..."
}

// CanSubmit reports whether a query box holding input would be accepted.
func CanSubmit(snap session.Snapshot, input string) bool {
	return snap.DatasetLoaded && !snap.Busy && strings.TrimSpace(input) != ""
}
