package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/estatebot/internal/delivery"
	"github.com/user/estatebot/internal/export"
	"github.com/user/estatebot/internal/gateway"
	"github.com/user/estatebot/internal/render/terminal"
	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
	"github.com/user/estatebot/internal/view"
	"github.com/user/estatebot/pkg/analytics"
)

const chatHelp = `Commands:
  :upload <path>     load an Excel dataset (.xlsx, .xls)
  :export [n]        download the table of message n (default: latest)
  :history           print the whole conversation
  :dump [json|yaml]  print the session state
  :help              show this help
  :quit              leave
Anything else is sent as a question.`

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [dataset.xlsx]",
	Short: "Chat with the analytics service in the terminal",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliveries := delivery.NewRegistry()
	gw := newGateway(cfg, newService(cfg), deliveries)
	gw.Start(ctx)
	defer gw.Stop()

	chat := &chatSession{
		exports:   gw.Exports,
		render:    terminal.New(),
		out:       os.Stdout,
		exportDir: cfg.ExportDir(),
		format:    cfg.Export.Format,
	}
	deliveries.Register("cli:", chat.deliver)
	chat.ctrl, _ = gw.Sessions.ResolveOrCreate(types.NewSessionKey("cli", "local"))

	fmt.Fprintln(chat.out, view.EmptyHint(chat.ctrl.Snapshot()))
	fmt.Fprintln(chat.out, "Type :help for commands.")
	if len(args) == 1 {
		chat.upload(ctx, args[0])
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(chat.out, "› ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(chat.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(chat.out)
				return nil
			}
			if chat.handle(ctx, line) {
				return nil
			}
		}
	}
}

// chatSession drives one terminal conversation.
type chatSession struct {
	ctrl      *session.Controller
	exports   *gateway.Detacher
	render    *terminal.Renderer
	out       io.Writer
	exportDir string
	format    string
}

// deliver prints a session message at its timeline position.
func (c *chatSession) deliver(_ types.SessionKey, msg session.Message) error {
	n := 0
	for i, m := range c.ctrl.Snapshot().Timeline {
		if m.MessageID() == msg.MessageID() {
			n = i + 1
			break
		}
	}
	_, err := fmt.Fprint(c.out, c.render.Message(n, msg))
	return err
}

// handle runs one input line and reports whether the user asked to quit.
func (c *chatSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		c.ask(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "q", "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(c.out, chatHelp)
	case "upload":
		if arg == "" {
			fmt.Fprintln(c.out, "usage: :upload <path>")
			return false
		}
		c.upload(ctx, arg)
	case "export":
		c.export(arg)
	case "history":
		c.render.Render(c.out, c.ctrl.Snapshot())
	case "dump":
		c.dump(arg)
	default:
		fmt.Fprintf(c.out, "unknown command :%s (try :help)\n", cmd)
	}
	return false
}

func (c *chatSession) ask(ctx context.Context, query string) {
	snap := c.ctrl.Snapshot()
	if !snap.DatasetLoaded {
		fmt.Fprintln(c.out, view.HintUpload+" with :upload <path>")
		return
	}
	if !view.CanSubmit(snap, query) {
		return
	}
	fmt.Fprintln(c.out, view.HintBusy)
	c.ctrl.Ask(ctx, query)
}

func (c *chatSession) upload(ctx context.Context, path string) {
	if !slices.Contains(strings.Split(view.AcceptedTypes, ","), strings.ToLower(filepath.Ext(path))) {
		fmt.Fprintf(c.out, "expected an Excel file (%s)\n", view.AcceptedTypes)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(c.out, "open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	fmt.Fprintln(c.out, view.HintBusy)
	c.ctrl.Ingest(ctx, analytics.File{Name: filepath.Base(path), Content: f})
	if snap := c.ctrl.Snapshot(); snap.DatasetLoaded {
		fmt.Fprintln(c.out, view.Placeholder(snap.KnownLocations))
	}
}

// export downloads the table of the bot message at position arg, or of the
// latest bot message, and waits for it to land on disk.
func (c *chatSession) export(arg string) {
	bot, err := c.pickBot(arg)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}

	dir := export.NewDirSink(c.exportDir)
	dir.Saved = func(path string) { fmt.Fprintln(c.out, "Saved", path) }
	var sink session.ExportSink = dir
	if c.format == "xlsx" {
		sink = &export.XLSXSink{Next: dir}
	}

	done := make(chan error, 1)
	if err := c.exports.Export(c.ctrl, bot.LocationsForExport, sink, func(err error) { done <- err }); err != nil {
		fmt.Fprintln(c.out, "export unavailable:", err)
		return
	}
	if err := <-done; err != nil {
		fmt.Fprintln(c.out, "Export failed:", err)
	}
}

func (c *chatSession) pickBot(arg string) (session.BotMessage, error) {
	snap := c.ctrl.Snapshot()
	if arg == "" {
		bot, ok := snap.LatestBot()
		if !ok {
			return bot, fmt.Errorf("nothing to export yet, ask a question first")
		}
		return bot, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(snap.Timeline) {
		return session.BotMessage{}, fmt.Errorf("no message #%s", arg)
	}
	bot, ok := snap.Timeline[n-1].(session.BotMessage)
	if !ok {
		return bot, fmt.Errorf("message #%d has no table", n)
	}
	return bot, nil
}

func (c *chatSession) dump(format string) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "", "json":
		data, err = json.MarshalIndent(c.ctrl.Snapshot(), "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = snapshotYAML(c.ctrl.Snapshot())
	default:
		fmt.Fprintln(c.out, "usage: :dump [json|yaml]")
		return
	}
	if err != nil {
		fmt.Fprintln(c.out, "dump failed:", err)
		return
	}
	c.out.Write(data)
}

// snapshotYAML renders the snapshot's JSON form as block YAML. Going through
// yaml.Node keeps the key order of every record.
func snapshotYAML(snap session.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	plainStyle(&node)
	return yaml.Marshal(&node)
}

func plainStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		plainStyle(child)
	}
}
