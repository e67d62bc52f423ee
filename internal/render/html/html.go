// Package html renders a session as a standalone HTML page styled with
// Tailwind CSS v4 (CDN). Bot summaries are markdown and go through goldmark.
package html

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/internal/view"
)

// Renderer renders session snapshots to HTML pages.
type Renderer struct {
	md   goldmark.Markdown
	tmpl *template.Template
}

// New creates an HTML Renderer with goldmark configured for GFM. Raw HTML
// in summaries is escaped.
func New() *Renderer {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	tmpl := template.Must(
		template.New("page.html").
			Funcs(funcMap()).
			ParseFS(content, "templates/*.html"),
	)

	return &Renderer{md: md, tmpl: tmpl}
}

// pageData is the top-level template data passed to page.html.
type pageData struct {
	SessionID     types.SessionID
	DatasetLoaded bool
	Busy          bool
	PendingInput  string
	EmptyHint     string
	Placeholder   string
	Suggestions   []string
	AcceptedTypes string
	BusyHint      string
	UploadURL     string
	QueryURL      string
	Messages      []messageData
}

// messageData is the per-message template data passed to message.html.
type messageData struct {
	ID        types.MessageID
	Kind      session.Kind
	Text      string
	Summary   template.HTML
	Chart     *svgChart
	Table     *view.Table
	ExportURL string
}

// Render writes the snapshot as a complete HTML page to w.
func (r *Renderer) Render(w io.Writer, snap session.Snapshot) error {
	data := pageData{
		SessionID:     snap.SessionID,
		DatasetLoaded: snap.DatasetLoaded,
		Busy:          snap.Busy,
		PendingInput:  snap.PendingInput,
		EmptyHint:     view.EmptyHint(snap),
		Placeholder:   view.Placeholder(snap.KnownLocations),
		Suggestions:   view.Suggestions,
		AcceptedTypes: view.AcceptedTypes,
		BusyHint:      view.HintBusy,
		UploadURL:     r.sessionURL(snap.SessionID, "upload"),
		QueryURL:      r.sessionURL(snap.SessionID, "query"),
	}

	for _, m := range snap.Timeline {
		md, err := r.message(snap.SessionID, m)
		if err != nil {
			return err
		}
		data.Messages = append(data.Messages, md)
	}

	return r.tmpl.ExecuteTemplate(w, "page.html", data)
}

func (r *Renderer) message(id types.SessionID, m session.Message) (messageData, error) {
	md := messageData{ID: m.MessageID(), Kind: m.Kind()}

	switch v := m.(type) {
	case session.BotMessage:
		summary, err := r.Markdown(v.Summary)
		if err != nil {
			return md, fmt.Errorf("render summary: %w", err)
		}
		md.Summary = summary
		md.Chart = newSVGChart(view.BuildChart(v.ChartSeries))
		md.Table = view.BuildTable(v)
		if md.Table != nil {
			md.ExportURL = r.sessionURL(id, "export/"+string(v.ID))
		}
	default:
		md.Text = session.Text(m)
	}
	return md, nil
}

// Markdown converts text to HTML.
func (r *Renderer) Markdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("goldmark convert: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// sessionURL is the form action for id. A snapshot without an ID is the
// landing page, whose upload starts a new session.
func (r *Renderer) sessionURL(id types.SessionID, action string) string {
	if id == "" {
		return "/" + action
	}
	return "/s/" + string(id) + "/" + action
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"bubbleClass": bubbleClass,
		"alignClass": func(k session.Kind) string {
			if k == session.KindUser {
				return "text-right"
			}
			return "text-left"
		},
		"columns": func() []string { return view.Columns },
	}
}

func bubbleClass(k session.Kind) string {
	switch k {
	case session.KindUser:
		return "inline-block bg-indigo-600 text-white px-4 py-2 rounded-lg max-w-md"
	case session.KindSystem:
		return "inline-block bg-green-100 text-green-800 px-4 py-2 rounded-lg"
	case session.KindError:
		return "inline-block bg-red-100 text-red-800 px-4 py-2 rounded-lg"
	default:
		return "inline-block bg-gray-700 text-gray-100 p-4 rounded-lg max-w-4xl"
	}
}
