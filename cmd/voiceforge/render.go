package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"voiceforge/internal/deps"
	"voiceforge/internal/ipc"
	"voiceforge/internal/queue"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
		t.Style().Options.DrawBorder = false
	}
	return t
}

func renderItems(w io.Writer, items []*queue.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Voice", "Status", "Progress", "Clips", "Source"})
	for _, item := range items {
		progress := fmt.Sprintf("%.0f%%", item.ProgressPercent)
		if item.ProgressMessage != "" {
			progress += " " + item.ProgressMessage
		}
		switch {
		case item.Status == queue.StatusFailed || item.Status == queue.StatusReview:
			progress = firstNonEmpty(item.ReviewReason, item.ErrorMessage, progress)
		case item.Status.IsTerminal():
			progress = "done"
		}
		t.AppendRow(table.Row{
			item.ID,
			item.VoiceName,
			item.Status,
			text.Trim(progress, 60),
			item.ClipCount,
			text.Trim(item.SourceLabel(), 48),
		})
	}
	t.Render()
}

func renderStatus(w io.Writer, status ipc.StatusReply) {
	fmt.Fprintf(w, "daemon: running (pid %d, version %s, since %s)\n",
		status.PID, status.Version, status.StartedAt)

	if len(status.QueueCounts) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Status", "Items"})
		for _, s := range queue.AllStatuses() {
			if count, ok := status.QueueCounts[string(s)]; ok && count > 0 {
				t.AppendRow(table.Row{string(s), count})
			}
		}
		t.Render()
	} else {
		fmt.Fprintln(w, "queue is empty")
	}

	if len(status.StageHealths) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Stage", "Ready", "Detail"})
		for _, h := range status.StageHealths {
			t.AppendRow(table.Row{h.Name, h.Ready, h.Detail})
		}
		t.Render()
	}
}

func renderToolStatuses(w io.Writer, statuses []deps.Status) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Tool", "Binary", "Found", "Purpose"})
	for _, status := range statuses {
		location := status.Path
		if !status.Found {
			location = "missing"
		}
		t.AppendRow(table.Row{status.Name, firstNonEmpty(location, status.Binary), status.Found, status.Purpose})
	}
	t.Render()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
