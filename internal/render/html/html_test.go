package html

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/pkg/analytics"
)

func stamp(id string) session.Envelope {
	return session.Envelope{ID: types.MessageID("msg-" + id), At: time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)}
}

func render(t *testing.T, snap session.Snapshot) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, snap))
	return buf.String()
}

func TestRenderEmptyStates(t *testing.T) {
	out := render(t, session.Snapshot{SessionID: "s1"})
	assert.Contains(t, out, "Upload your Excel file to get started")
	assert.Contains(t, out, `action="/s/s1/upload"`)
	assert.Contains(t, out, `accept=".xlsx,.xls"`)
	assert.NotContains(t, out, `action="/s/s1/query"`, "query form hidden until a dataset is loaded")

	out = render(t, session.Snapshot{SessionID: "s1", DatasetLoaded: true})
	assert.Contains(t, out, "Data loaded! Ask a question below.")
	assert.Contains(t, out, `action="/s/s1/query"`)
	assert.Contains(t, out, "Compare Aundh and Akurdi")
}

func TestRenderLandingPage(t *testing.T) {
	out := render(t, session.Snapshot{})
	assert.Contains(t, out, `action="/upload"`)
	assert.NotContains(t, out, `action="/s/`)
	assert.Contains(t, out, "Upload your Excel file to get started")
}

func TestRenderTimeline(t *testing.T) {
	full := make([]analytics.Record, 12)
	for i := range full {
		full[i] = analytics.NewRecord(
			analytics.KeyLocation, "Wakad",
			analytics.KeyYear, float64(2010+i),
			analytics.KeyAveragePrice, 5000.5,
			analytics.KeyTotalSales, 25_000_000.0,
			analytics.KeyTotalUnits, 40.0,
		)
	}
	bot := session.BotMessage{
		Envelope:     stamp("bot"),
		Summary:      "**Wakad** prices rose.\n\n<script>alert(1)</script>",
		ChartSeries:  []analytics.Record{analytics.NewRecord("year", 2020.0, "Wakad", 5000.0), analytics.NewRecord("year", 2021.0, "Wakad", 5500.0)},
		TableFull:    full,
		TablePreview: session.Preview(full),
	}
	snap := session.Snapshot{
		SessionID:      "s1",
		DatasetLoaded:  true,
		KnownLocations: []string{"Wakad", "Baner"},
		Timeline: []session.Message{
			session.SystemMessage{Envelope: stamp("sys"), Text: "Loaded. Available locations: Wakad, Baner..."},
			session.UserMessage{Envelope: stamp("user"), Text: "Analyze <Wakad>"},
			bot,
			session.ErrorMessage{Envelope: stamp("err"), Text: "Error: no data"},
		},
	}

	out := render(t, snap)

	assert.NotContains(t, out, "Upload your Excel file")
	assert.Contains(t, out, "Analyze &lt;Wakad&gt;")
	assert.Contains(t, out, "<strong>Wakad</strong> prices rose.")
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "Price Trends")
	assert.Contains(t, out, `stroke="#8884d8"`)
	assert.Contains(t, out, "Data Table (12 records)")
	assert.Contains(t, out, `action="/s/s1/export/msg-bot"`)
	assert.Contains(t, out, "₹5001")
	assert.Contains(t, out, "₹2.50Cr")
	assert.Equal(t, 10, strings.Count(out, `<tr class="border-b bg-gray-800">`))
	assert.Contains(t, out, "Error: no data")
	assert.Contains(t, out, `placeholder="Ask about Wakad, Baner, etc..."`)

	order := []string{"msg-sys", "msg-user", "msg-bot", "msg-err"}
	last := -1
	for _, id := range order {
		idx := strings.Index(out, `id="msg-`+id+`"`)
		require.NotEqual(t, -1, idx, id)
		assert.Greater(t, idx, last, "%s out of order", id)
		last = idx
	}
}

func TestRenderBotWithoutChartOrTable(t *testing.T) {
	snap := session.Snapshot{
		SessionID:     "s1",
		DatasetLoaded: true,
		Timeline: []session.Message{
			session.BotMessage{Envelope: stamp("bot"), Summary: "Nothing to plot", ChartSeries: []analytics.Record{}},
		},
	}
	out := render(t, snap)
	assert.Contains(t, out, "Nothing to plot")
	assert.NotContains(t, out, "Price Trends")
	assert.NotContains(t, out, "Data Table")
	assert.NotContains(t, out, "/export/")
}

func TestRenderBusy(t *testing.T) {
	snap := session.Snapshot{SessionID: "s1", DatasetLoaded: true, Busy: true, PendingInput: "draft"}
	out := render(t, snap)
	assert.Contains(t, out, `http-equiv="refresh"`)
	assert.Contains(t, out, "Analyzing...")
	assert.Contains(t, out, `value="draft"`)
	assert.Contains(t, out, "disabled")
}

func TestMarkdown(t *testing.T) {
	got, err := New().Markdown("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	assert.Contains(t, string(got), "<table>")
}
